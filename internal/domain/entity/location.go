package entity

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Location representa una ubicación de almacenamiento (bodega o estante).
// El código es único sin distinguir mayúsculas y no cambia una vez referenciado.
type Location struct {
	ID          int64
	Code        string
	Name        string
	Description string
	DisabledAt  *time.Time // baja lógica; nunca se borra si tiene movimientos
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active indica si la ubicación puede recibir stock.
func (l *Location) Active() bool {
	return l.DisabledAt == nil
}

// CodeKey devuelve la forma normalizada del código usada para la unicidad.
func (l *Location) CodeKey() string {
	return NormalizeCode(l.Code)
}

// NormalizeCode recorta y pliega mayúsculas/minúsculas (Unicode case folding).
// cases.Caser no es seguro entre goroutines, por eso se crea por llamada.
func NormalizeCode(code string) string {
	return cases.Fold().String(strings.TrimSpace(code))
}
