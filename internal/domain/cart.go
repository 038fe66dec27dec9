package domain

import (
	"math"
	"time"
)

// CartItem: позиция корзины со снимком цены на момент добавления.
type CartItem struct {
	ProductID  string
	Name       string
	Qty        int32
	PriceMinor int64
}

// Cart принадлежит одному клиенту и содержит товары не более чем одного магазина.
type Cart struct {
	CustomerID string
	ShopID     string
	Items      []CartItem
	UpdatedAt  time.Time
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalMinor возвращает сумму qty * price по всем позициям.
func (c *Cart) TotalMinor() int64 {
	var total int64
	for _, item := range c.Items {
		total += int64(item.Qty) * item.PriceMinor
	}
	return total
}

// AddItem добавляет позицию магазина shopID.
// Если в корзине лежат товары другого магазина, без force возвращается
// ErrCartShopConflict и корзина не меняется; с force корзина заменяется новой позицией.
func (c *Cart) AddItem(shopID string, item CartItem, force bool) error {
	if shopID == "" {
		return ErrShopRequired
	}
	if item.ProductID == "" {
		return ErrProductRequired
	}
	if item.Qty <= 0 {
		return ErrItemQtyInvalid
	}
	if item.PriceMinor < 0 {
		return ErrItemPriceInvalid
	}

	if !c.IsEmpty() && c.ShopID != shopID {
		if !force {
			return ErrCartShopConflict
		}
		c.Items = nil
	}
	c.ShopID = shopID

	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			if c.Items[i].Qty > math.MaxInt32-item.Qty {
				return ErrItemQtyInvalid
			}
			c.Items[i].Qty += item.Qty
			c.Items[i].PriceMinor = item.PriceMinor
			c.Items[i].Name = item.Name
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// RemoveItem убирает позицию и возвращает false, если её не было.
func (c *Cart) RemoveItem(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		if len(c.Items) == 0 {
			c.ShopID = ""
		}
		return true
	}
	return false
}

// Clear сбрасывает корзину в пустое состояние.
func (c *Cart) Clear() {
	c.Items = nil
	c.ShopID = ""
}

// Clone возвращает копию, не разделяющую слайс позиций.
func (c Cart) Clone() Cart {
	c.Items = append([]CartItem(nil), c.Items...)
	return c
}
