package model

// AllModels returns every model that AutoMigrate manages.
// New tables are added here, main.go does not change.
func AllModels() []interface{} {
	return []interface{}{
		&Seller{},
		&Buyer{},
		&Network{},
		&BlockchainMarketplace{},
		&SellerMarketplace{},
		&MarketplaceTransaction{},
		&ProductOrder{},
		&OrderTransaction{},
		&SellerPayout{},
		&PayoutTransaction{},
		&OutboxMessage{},
	}
}
