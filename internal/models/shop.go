package models

// ShopItem is a purchasable cosmetic
type ShopItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Price       int    `json:"price"`
	AssetURL    string `json:"asset_url"`
	IconURL     string `json:"icon_url"`
	Description string `json:"description"`
}

// ShopResponse is the catalog envelope
type ShopResponse struct {
	Items []ShopItem `json:"items"`
}

// ItemRequest identifies an item for buy and equip
type ItemRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}
