package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/deliverly/checkout-core/internal/cart"
	"github.com/deliverly/checkout-core/internal/checkout"
	pkgerrors "github.com/deliverly/checkout-core/pkg/errors"
)

type stubCartService struct {
	view         checkout.CartView
	addErr       error
	updateErr    error
	lastAddInput checkout.AddItemInput
	lastItemID   uuid.UUID
	lastQuantity int
	clearCalled  bool
	removeCalled bool
}

func (s *stubCartService) AddItem(_ context.Context, input checkout.AddItemInput) (cartsvc.Item, error) {
	s.lastAddInput = input
	if s.addErr != nil {
		return cartsvc.Item{}, s.addErr
	}
	return cartsvc.Item{ID: uuid.New(), MenuItemID: input.MenuItemID}, nil
}

func (s *stubCartService) UpdateQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	s.lastItemID = itemID
	s.lastQuantity = quantity
	return s.updateErr
}

func (s *stubCartService) RemoveItem(_ context.Context, itemID uuid.UUID) error {
	s.removeCalled = true
	s.lastItemID = itemID
	return nil
}

func (s *stubCartService) Clear(_ context.Context) error {
	s.clearCalled = true
	return nil
}

func (s *stubCartService) View() checkout.CartView {
	return s.view
}

func withItemID(req *http.Request, itemID uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("itemID", itemID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestFetchReturnsView(t *testing.T) {
	svc := &stubCartService{view: checkout.CartView{TotalItems: 3, Settled: true}}
	handler := Fetch(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data checkout.CartView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalItems != 3 {
		t.Fatalf("unexpected total items: %d", envelope.Data.TotalItems)
	}
}

func TestAddItemSuccess(t *testing.T) {
	svc := &stubCartService{}
	handler := AddItem(svc, nil)

	body := `{"menuItemId":"menu_1","name":"  Falafel Wrap ","price":"22.50","quantity":2,"restaurantId":"rest_1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastAddInput.Name != "Falafel Wrap" {
		t.Fatalf("expected sanitized name, got %q", svc.lastAddInput.Name)
	}
	if !svc.lastAddInput.UnitPrice.Equal(decimal.RequireFromString("22.50")) {
		t.Fatalf("unexpected price: %s", svc.lastAddInput.UnitPrice)
	}
}

func TestAddItemValidation(t *testing.T) {
	handler := AddItem(&stubCartService{}, nil)

	body := `{"name":"Falafel","quantity":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAddItemRestaurantConflict(t *testing.T) {
	svc := &stubCartService{addErr: pkgerrors.New(pkgerrors.CodeRestaurantConflict, "cart already holds items from another restaurant")}
	handler := AddItem(svc, nil)

	body := `{"menuItemId":"menu_1","name":"Falafel","price":"10","quantity":1,"restaurantId":"rest_2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != "RESTAURANT_CONFLICT" {
		t.Fatalf("unexpected error code: %s", envelope.Error.Code)
	}
}

func TestUpdateQuantityZeroIsAccepted(t *testing.T) {
	svc := &stubCartService{}
	handler := UpdateQuantity(svc, nil)

	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+itemID.String(), strings.NewReader(`{"quantity":0}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withItemID(req, itemID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastItemID != itemID || svc.lastQuantity != 0 {
		t.Fatalf("expected quantity 0 forwarded for %s, got %d for %s", itemID, svc.lastQuantity, svc.lastItemID)
	}
}

func TestUpdateQuantityUnknownItem(t *testing.T) {
	svc := &stubCartService{updateErr: pkgerrors.New(pkgerrors.CodeItemNotFound, "cart item not found")}
	handler := UpdateQuantity(svc, nil)

	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+itemID.String(), strings.NewReader(`{"quantity":2}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withItemID(req, itemID))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestUpdateQuantityInvalidItemID(t *testing.T) {
	handler := UpdateQuantity(&stubCartService{}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/not-a-uuid", strings.NewReader(`{"quantity":2}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("itemID", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRemoveItemSuccess(t *testing.T) {
	svc := &stubCartService{}
	handler := RemoveItem(svc, nil)

	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withItemID(req, itemID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.removeCalled {
		t.Fatal("expected remove to be forwarded")
	}
}

func TestClearSuccess(t *testing.T) {
	svc := &stubCartService{}
	handler := Clear(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.clearCalled {
		t.Fatal("expected clear to be forwarded")
	}
}
