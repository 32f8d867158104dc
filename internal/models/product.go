package models

import (
	"time"

	"makerhub/b2b/internal/utils"
)

// ProductVariant is one sellable variation embedded in a product document.
type ProductVariant struct {
	ID      utils.ShortID `bson:"_id" json:"id"`
	Name    string        `bson:"name" json:"name"`
	SKU     string        `bson:"sku,omitempty" json:"sku,omitempty"`
	Deleted bool          `bson:"deleted" json:"-"` // Soft delete flag
}

// Product is the catalog read model consumed by the quote workflow. The catalog
// itself is maintained elsewhere; this core only reads ownership and liveness.
type Product struct {
	ID              utils.ShortID    `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string           `bson:"name" json:"name"`
	SKU             string           `bson:"sku,omitempty" json:"sku,omitempty"`
	SellerID        utils.ShortID    `bson:"seller_id" json:"seller_id"`
	SellerCompanyID *utils.ShortID   `bson:"seller_company_id,omitempty" json:"seller_company_id,omitempty"`
	Variants        []ProductVariant `bson:"variants,omitempty" json:"variants,omitempty"`
	UpdatedAt       time.Time        `bson:"updated_at" json:"updated_at"`
	CreatedAt       time.Time        `bson:"created_at" json:"created_at"`
	Deleted         bool             `bson:"deleted" json:"-"` // Soft delete flag
}

// Variant returns the live variant with the given ID, or nil if it does not
// exist or is soft-deleted.
func (p *Product) Variant(id utils.ShortID) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id && !p.Variants[i].Deleted {
			return &p.Variants[i]
		}
	}
	return nil
}
