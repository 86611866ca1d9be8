package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/quickbite/api/internal/checkout"
)

// parseItem reads productId:name:unitPrice[:quantity]. Quantity defaults to 1.
func parseItem(spec string) (checkout.Item, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return checkout.Item{}, errors.Errorf("item %q: want productId:name:unitPrice[:quantity]", spec)
	}
	productID, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if productID == "" || name == "" {
		return checkout.Item{}, errors.Errorf("item %q: product id and name are required", spec)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil {
		return checkout.Item{}, errors.Wrapf(err, "item %q: unit price", spec)
	}
	qty := int64(1)
	if len(parts) == 4 {
		qty, err = strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 32)
		if err != nil {
			return checkout.Item{}, errors.Wrapf(err, "item %q: quantity", spec)
		}
	}
	return checkout.Item{ProductID: productID, Name: name, UnitPrice: price, Quantity: int32(qty)}, nil
}
