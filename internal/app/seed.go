package app

import (
	"context"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Демо-каталог для локального запуска на memory-хранилище.
const (
	demoCustomerID = "demo-customer"
	demoOwnerID    = "demo-owner"
)

func seedDemoCatalog(ctx context.Context, store domain.Store) error {
	shops := []domain.Shop{
		{ID: "shop-clay", OwnerID: demoOwnerID, Name: "Clay Works"},
		{ID: "shop-loom", OwnerID: demoOwnerID, Name: "Handloom House"},
	}
	products := []domain.Product{
		{ID: "prod-mug", ShopID: "shop-clay", Name: "Terracotta mug", PriceMinor: 10000, StockQuantity: 50},
		{ID: "prod-vase", ShopID: "shop-clay", Name: "Glazed vase", PriceMinor: 45000, StockQuantity: 10},
		{ID: "prod-scarf", ShopID: "shop-loom", Name: "Cotton scarf", PriceMinor: 80000, StockQuantity: 20},
	}

	for _, shop := range shops {
		if err := store.Shops().Create(ctx, shop); err != nil {
			return err
		}
	}
	for _, product := range products {
		if err := store.Products().Create(ctx, product); err != nil {
			return err
		}
	}
	return store.Customers().Upsert(ctx, domain.Customer{
		ID:    demoCustomerID,
		Name:  "Demo Customer",
		Email: "demo@example.com",
	})
}
