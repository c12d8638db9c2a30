package model

import "marketplace-core/pkg/errno"

// Kind names one of the three aggregates whose life cycle is tracked
type Kind string

const (
	KindMarketplace Kind = "marketplace"
	KindOrder       Kind = "order"
	KindPayout      Kind = "payout"
)

// Kinds in reconciliation order
var Kinds = []Kind{KindMarketplace, KindOrder, KindPayout}

// ParseKind accepts the singular and the plural (route) spelling
func ParseKind(s string) (Kind, error) {
	switch s {
	case "marketplace", "marketplaces":
		return KindMarketplace, nil
	case "order", "orders":
		return KindOrder, nil
	case "payout", "payouts":
		return KindPayout, nil
	default:
		return "", errno.ErrUnknownAggregateKind.WithMessage("unknown aggregate kind " + s)
	}
}

// Table is the aggregate table
func (k Kind) Table() string {
	switch k {
	case KindMarketplace:
		return SellerMarketplace{}.TableName()
	case KindOrder:
		return ProductOrder{}.TableName()
	case KindPayout:
		return SellerPayout{}.TableName()
	}
	return ""
}

// TransactionTable is the child transaction table
func (k Kind) TransactionTable() string {
	switch k {
	case KindMarketplace:
		return MarketplaceTransaction{}.TableName()
	case KindOrder:
		return OrderTransaction{}.TableName()
	case KindPayout:
		return PayoutTransaction{}.TableName()
	}
	return ""
}

// OwnerColumn is the aggregate column referencing its owner
func (k Kind) OwnerColumn() string {
	if k == KindOrder {
		return "buyer_id"
	}
	return "seller_id"
}

// OwnerTable is the table the owner id points at
func (k Kind) OwnerTable() string {
	if k == KindOrder {
		return Buyer{}.TableName()
	}
	return Seller{}.TableName()
}

// ErrOwnerNotFound is raised when the owner row is missing
func (k Kind) ErrOwnerNotFound() *errno.Errno {
	if k == KindOrder {
		return errno.ErrBuyerNotFound
	}
	return errno.ErrSellerNotFound
}

// ErrNotFound is raised when the aggregate is missing or belongs to somebody else
func (k Kind) ErrNotFound() *errno.Errno {
	switch k {
	case KindOrder:
		return errno.ErrOrderNotFound
	case KindPayout:
		return errno.ErrPayoutNotFound
	default:
		return errno.ErrMarketplaceNotFound
	}
}
