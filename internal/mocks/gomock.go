package mocks

//go:generate mockgen -source=./../blockchain/client.go -destination=./rpcMocks/rpc_mock.go -package=rpcMocks
//go:generate mockgen -source=./../wallet/wallet.go -destination=./walletMocks/wallet_mock.go -package=walletMocks
//go:generate mockgen -source=./../pricing/pricing.go -destination=./priceMocks/pricing_mock.go -package=priceMocks
