package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/analytics"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/usecase"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/pcp-stock-ledger/internal/interfaces/http"
)

type testServer struct {
	app   *fiber.App
	token string
	admin string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewCatalog(store)
	catalog.Seed(entity.Product{ID: 7, Code: "P-7"}, entity.Product{ID: 8, Code: "P-8"})

	runner := memory.NewTxRunner(store)
	movRepo := memory.NewMovementRepository(store)
	balRepo := memory.NewBalanceRepository(store)
	locRepo := memory.NewLocationRepository(store)

	app := fiber.New()
	app.Use(apphttp.TracingMiddleware())
	app.Use(apphttp.LoggingMiddleware(zerolog.Nop()))
	apphttp.Router(app, apphttp.RouterDeps{
		LocationUC:       usecase.NewLocationUseCase(locRepo),
		RegisterMovement: inventory.NewRegisterMovementUseCase(runner, movRepo, balRepo, catalog, inventory.DefaultConfig(), zerolog.Nop()),
		LedgerQueries:    inventory.NewLedgerQueryUseCase(movRepo, balRepo, locRepo, 100),
		Reconcile:        inventory.NewReconcileUseCase(runner, movRepo, balRepo, catalog, zerolog.Nop(), nil),
		StockAlerts:      analytics.NewStockAlertsUseCase(balRepo),
		Store:            store,
		StorageName:      "memory",
		JWTSecret:        testJWTSecret,
		JWTIssuer:        testIssuer,
	})
	return &testServer{app: app, token: tokenForRole(t, "bodeguero"), admin: tokenForRole(t, "admin")}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	return s.doAs(t, s.token, method, path, body)
}

func (s *testServer) doAs(t *testing.T, token, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		r = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (s *testServer) createLocation(t *testing.T, code string) int64 {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/locations", dto.CreateLocationRequest{Code: code, Name: "Bodega " + code})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var loc dto.LocationResponse
	require.NoError(t, json.Unmarshal(body, &loc))
	return loc.ID
}

func (s *testServer) balance(t *testing.T, productID, locationID int64) decimal.Decimal {
	t.Helper()
	resp, body := s.do(t, http.MethodGet, fmt.Sprintf("/api/balances/%d/%d", productID, locationID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var b dto.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &b))
	return b.Balance
}

func movementBody(typ string, qty string, from, to int64, ref string) string {
	loc := func(v int64) string {
		if v == 0 {
			return "null"
		}
		return fmt.Sprint(v)
	}
	return fmt.Sprintf(`{"product_id":7,"quantity":%s,"type":%q,"location_from":%s,"location_to":%s,"reference":%q}`,
		qty, typ, loc(from), loc(to), ref)
}

func decodeError(t *testing.T, body []byte) dto.ErrorResponse {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

// Recorre los escenarios de punta a punta: entrada, salida, rechazo, concurrencia, traslado e historial.
func TestLedgerScenarios(t *testing.T) {
	s := newTestServer(t)
	whA := s.createLocation(t, "WH-A")

	// 1. IN de 100
	resp, body := s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "100", 0, whA, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.True(t, s.balance(t, 7, whA).Equal(decimal.NewFromInt(100)))

	// 2. OUT de 30
	resp, body = s.do(t, http.MethodPost, "/api/stock-movements", movementBody("OUT", `"30"`, whA, 0, "sale-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var mov dto.MovementResponse
	require.NoError(t, json.Unmarshal(body, &mov))
	assert.Equal(t, "sale-1", mov.Reference)
	assert.Equal(t, testUserID, mov.CreatedBy)
	assert.True(t, s.balance(t, 7, whA).Equal(decimal.NewFromInt(70)))

	// 3. OUT excesivo
	resp, body = s.do(t, http.MethodPost, "/api/stock-movements", movementBody("OUT", "999999", whA, 0, ""))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeError(t, body)
	assert.Equal(t, "InsufficientStock", e.Error)
	require.NotNil(t, e.Available)
	assert.True(t, e.Available.Equal(decimal.NewFromInt(70)))
	assert.True(t, s.balance(t, 7, whA).Equal(decimal.NewFromInt(70)))

	// 4. dos OUT concurrentes de 70
	var wg sync.WaitGroup
	codes := make(chan int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := s.do(t, http.MethodPost, "/api/stock-movements", movementBody("OUT", "70", whA, 0, ""))
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)
	var got []int
	for c := range codes {
		got = append(got, c)
	}
	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusBadRequest}, got)
	assert.True(t, s.balance(t, 7, whA).IsZero())

	// 5. reabastecer y trasladar a WH-B
	resp, _ = s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "70", 0, whA, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	whB := s.createLocation(t, "WH-B")
	resp, body = s.do(t, http.MethodPost, "/api/stock-movements", movementBody("TRANSFER", "20", whA, whB, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.True(t, s.balance(t, 7, whA).Equal(decimal.NewFromInt(50)))
	assert.True(t, s.balance(t, 7, whB).Equal(decimal.NewFromInt(20)))

	// 6. historial ascendente y repetible
	_, first := s.do(t, http.MethodGet, "/api/stock-movements?product_id=7", nil)
	_, second := s.do(t, http.MethodGet, "/api/stock-movements?product_id=7", nil)
	assert.JSONEq(t, string(first), string(second))
	var page dto.MovementListResponse
	require.NoError(t, json.Unmarshal(first, &page))
	require.Len(t, page.Items, 5)
	for i, m := range page.Items {
		assert.Equal(t, int64(i+1), m.ID, "sin huecos ni reordenamiento")
	}
	assert.Nil(t, page.NextAfterID)

	// GET /balances?product_id=
	resp, body = s.do(t, http.MethodGet, "/api/balances?product_id=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balances []dto.LocationBalanceResponse
	require.NoError(t, json.Unmarshal(body, &balances))
	require.Len(t, balances, 2)
	assert.Equal(t, whA, balances[0].LocationID)
	assert.True(t, balances[0].Balance.Equal(decimal.NewFromInt(50)))

	// sin product_id: todos los productos
	resp, body = s.do(t, http.MethodGet, "/api/balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	balances = nil
	require.NoError(t, json.Unmarshal(body, &balances))
	require.Len(t, balances, 2)
	for _, b := range balances {
		assert.Equal(t, int64(7), b.ProductID)
	}

	resp, body = s.do(t, http.MethodGet, "/api/balances?product_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestRegisterMovement_Rechazos(t *testing.T) {
	s := newTestServer(t)
	whA := s.createLocation(t, "WH-A")

	cases := map[string]struct {
		body   string
		reason string
	}{
		"cantidad cero":          {movementBody("IN", "0", 0, whA, ""), "InvalidQuantity"},
		"cantidad negativa":      {movementBody("IN", "-5", 0, whA, ""), "InvalidQuantity"},
		"cantidad no numérica":   {movementBody("IN", `"abc"`, 0, whA, ""), "InvalidQuantity"},
		"cantidad nula":          {movementBody("IN", "null", 0, whA, ""), "InvalidQuantity"},
		"precisión excesiva":     {movementBody("IN", "1.00001", 0, whA, ""), "InvalidQuantity"},
		"IN con origen":          {movementBody("IN", "1", whA, whA, ""), "InvalidLocationPair"},
		"TRANSFER mismo destino": {movementBody("TRANSFER", "1", whA, whA, ""), "InvalidLocationPair"},
		"ubicación desconocida":  {movementBody("IN", "1", 0, 999, ""), "UnknownLocation"},
		"producto desconocido":   {`{"product_id":99,"quantity":1,"type":"IN","location_to":` + fmt.Sprint(whA) + `}`, "UnknownProduct"},
		"tipo desconocido":       {movementBody("ADJUST", "1", 0, whA, ""), "InvalidInput"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/api/stock-movements", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
			assert.Equal(t, tc.reason, decodeError(t, body).Error)
		})
	}

	_, body := s.do(t, http.MethodGet, "/api/stock-movements", nil)
	var page dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Empty(t, page.Items, "ningún rechazo deja filas en el libro")
}

func TestLocations_CicloDeVida(t *testing.T) {
	s := newTestServer(t)
	id := s.createLocation(t, "WH-A")

	resp, body := s.do(t, http.MethodPost, "/api/locations", dto.CreateLocationRequest{Code: " wh-a ", Name: "otra"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DuplicateCode", decodeError(t, body).Error)

	resp, _ = s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "10", 0, id, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, http.MethodDelete, fmt.Sprintf("/api/locations/%d", id), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "LocationInUse", decodeError(t, body).Error)

	resp, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/locations/%d/disable", id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "1", 0, id, ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "LocationDisabled", decodeError(t, body).Error)

	resp, body = s.do(t, http.MethodPost, "/api/stock-movements", movementBody("OUT", "4", id, 0, ""))
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "una ubicación deshabilitada puede vaciarse: %s", body)

	_, body = s.do(t, http.MethodGet, "/api/locations", nil)
	var all []dto.LocationResponse
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 1, "el listado por defecto incluye las deshabilitadas")
	assert.Equal(t, id, all[0].ID)
	assert.False(t, all[0].Active)

	_, body = s.do(t, http.MethodGet, "/api/locations?active_only=true", nil)
	var active []dto.LocationResponse
	require.NoError(t, json.Unmarshal(body, &active))
	assert.Empty(t, active)

	resp, body = s.do(t, http.MethodGet, fmt.Sprintf("/api/locations/%d/balances", id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var held []dto.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &held))
	require.Len(t, held, 1)
	assert.True(t, held[0].Balance.Equal(decimal.NewFromInt(6)))

	empty := s.createLocation(t, "WH-EMPTY")
	resp, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/locations/%d", empty), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/locations/%d", empty), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReverseMovement(t *testing.T) {
	s := newTestServer(t)
	whA := s.createLocation(t, "WH-A")
	_, body := s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "10", 0, whA, ""))
	var in dto.MovementResponse
	require.NoError(t, json.Unmarshal(body, &in))

	resp, body := s.do(t, http.MethodPost, fmt.Sprintf("/api/stock-movements/%d/reverse", in.ID), dto.ReverseMovementRequest{Reference: "error de digitación"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var rev dto.MovementResponse
	require.NoError(t, json.Unmarshal(body, &rev))
	assert.Equal(t, "OUT", rev.Type)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, in.ID, *rev.ReversalOf)
	assert.True(t, s.balance(t, 7, whA).IsZero())

	resp, body = s.do(t, http.MethodPost, fmt.Sprintf("/api/stock-movements/%d/reverse", in.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "AlreadyReversed", decodeError(t, body).Error)

	resp, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/stock-movements/%d/reverse", rev.ID), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/stock-movements/999/reverse", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, fmt.Sprintf("/api/stock-movements/%d", in.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var original dto.MovementResponse
	require.NoError(t, json.Unmarshal(body, &original))
	assert.Equal(t, in, original, "el movimiento original no cambia")
}

func TestListMovements_Paginacion(t *testing.T) {
	s := newTestServer(t)
	whA := s.createLocation(t, "WH-A")
	for i := 0; i < 5; i++ {
		resp, _ := s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "1", 0, whA, ""))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var ids []int64
	path := "/api/stock-movements?limit=2"
	for {
		resp, body := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page dto.MovementListResponse
		require.NoError(t, json.Unmarshal(body, &page))
		for _, m := range page.Items {
			ids = append(ids, m.ID)
		}
		if page.NextAfterID == nil {
			break
		}
		path = fmt.Sprintf("/api/stock-movements?limit=2&after_id=%d", *page.NextAfterID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)

	resp, _ := s.do(t, http.MethodGet, "/api/stock-movements?from=ayer", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	resp, body := s.do(t, http.MethodGet, "/api/stock-movements?from="+future, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Empty(t, page.Items)
}

func TestAlerts(t *testing.T) {
	s := newTestServer(t)
	whA := s.createLocation(t, "WH-A")
	s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "5", 0, whA, ""))
	s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "3", 0, whA, ""))

	resp, body := s.do(t, http.MethodGet, "/api/alerts/low-stock?threshold=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var low []dto.LowStockAlertDTO
	require.NoError(t, json.Unmarshal(body, &low))
	require.Len(t, low, 1)
	assert.True(t, low[0].Balance.Equal(decimal.NewFromInt(8)))

	resp, _ = s.do(t, http.MethodGet, "/api/alerts/low-stock", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.do(t, http.MethodPost, "/api/stock-movements", movementBody("OUT", "8", whA, 0, ""))
	_, body = s.do(t, http.MethodGet, "/api/alerts/zero-stock", nil)
	var zero []dto.ZeroStockAlertDTO
	require.NoError(t, json.Unmarshal(body, &zero))
	require.Len(t, zero, 1)
	assert.Equal(t, whA, zero[0].LocationID)
}

func TestVerifyAndReconcile_RequierenRol(t *testing.T) {
	s := newTestServer(t)
	whA := s.createLocation(t, "WH-A")
	s.do(t, http.MethodPost, "/api/stock-movements", movementBody("IN", "5", 0, whA, ""))

	resp, _ := s.do(t, http.MethodPost, "/api/balances/verify", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := s.doAs(t, s.admin, http.MethodPost, "/api/balances/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var report dto.VerifyBalancesResponse
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 1, report.Checked)
	assert.Empty(t, report.Discrepancies)

	resp, body = s.doAs(t, s.admin, http.MethodPost, fmt.Sprintf("/api/balances/7/%d/reconcile", whA), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var b dto.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &b))
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(5)))
	assert.False(t, b.Frozen)

	resp, body = s.doAs(t, s.admin, http.MethodPost, fmt.Sprintf("/api/balances/999/%d/reconcile", whA), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", decodeError(t, body).Error)

	resp, body = s.doAs(t, s.admin, http.MethodPost, "/api/balances/7/999/reconcile", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", decodeError(t, body).Error)
}

func TestHealthYSinToken(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.doAs(t, "", http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","storage":"memory"}`, string(body))

	resp, _ = s.doAs(t, "", http.MethodGet, "/api/locations", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
