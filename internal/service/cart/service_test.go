package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	for _, p := range []domain.Product{
		{ID: "mug", ShopID: "shop-a", Name: "Mug", PriceMinor: 10000, StockQuantity: 10},
		{ID: "tea", ShopID: "shop-a", Name: "Tea", PriceMinor: 2500, StockQuantity: 10},
		{ID: "lamp", ShopID: "shop-b", Name: "Lamp", PriceMinor: 50000, StockQuantity: 1},
	} {
		require.NoError(t, store.Products().Create(ctx, p))
	}
	return NewService(store), store
}

func TestService_AddItemMergesSameProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "mug", Qty: 1})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "mug", Qty: 2})
	require.NoError(t, err)

	require.Equal(t, "shop-a", cart.ShopID)
	require.Len(t, cart.Items, 1)
	require.EqualValues(t, 3, cart.Items[0].Qty)
	require.EqualValues(t, 30000, cart.TotalMinor())
}

func TestService_AddItemShopConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "mug", Qty: 1})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "lamp", Qty: 1})
	require.ErrorIs(t, err, domain.ErrCartShopConflict)

	cart, err := svc.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, "shop-a", cart.ShopID)
	require.Len(t, cart.Items, 1)
	require.Equal(t, "mug", cart.Items[0].ProductID)
}

func TestService_AddItemForceReplacesCart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "mug", Qty: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "tea", Qty: 1})
	require.NoError(t, err)

	cart, err := svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "lamp", Qty: 1, Force: true})
	require.NoError(t, err)
	require.Equal(t, "shop-b", cart.ShopID)
	require.Equal(t, []domain.CartItem{{ProductID: "lamp", Name: "Lamp", Qty: 1, PriceMinor: 50000}}, cart.Items)
}

func TestService_AddItemValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  AddItemRequest
		want error
	}{
		{name: "no customer", req: AddItemRequest{ProductID: "mug", Qty: 1}, want: domain.ErrCustomerRequired},
		{name: "no product", req: AddItemRequest{CustomerID: "c-1", Qty: 1}, want: domain.ErrProductRequired},
		{name: "zero qty", req: AddItemRequest{CustomerID: "c-1", ProductID: "mug"}, want: domain.ErrItemQtyInvalid},
		{name: "unknown product", req: AddItemRequest{CustomerID: "c-1", ProductID: "ghost", Qty: 1}, want: domain.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_RemoveItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "mug", Qty: 1})
	require.NoError(t, err)

	_, err = svc.RemoveItem(ctx, "c-1", "tea")
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	cart, err := svc.RemoveItem(ctx, "c-1", "mug")
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())
	require.Empty(t, cart.ShopID)

	// после опустошения можно класть товары любого магазина
	cart, err = svc.AddItem(ctx, AddItemRequest{CustomerID: "c-1", ProductID: "lamp", Qty: 1})
	require.NoError(t, err)
	require.Equal(t, "shop-b", cart.ShopID)
}
