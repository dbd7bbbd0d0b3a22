package memory

import (
	"fmt"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
)

func timeoutErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
}
