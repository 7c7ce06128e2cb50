package chain

func init() {
	// Ethereum Mainnet
	Register("ETH", Mainnet, &Params{
		Symbol:      "ETH",
		Name:        "Ethereum",
		Type:        ChainTypeEVM,
		Decimals:    18,
		NativeToken: "ETH",

		ChainID: 1,

		DefaultAddressType: AddressEVM,
	})

	// Ethereum Sepolia Testnet
	Register("ETH", Testnet, &Params{
		Symbol:      "ETH",
		Name:        "Ethereum Sepolia",
		Type:        ChainTypeEVM,
		Decimals:    18,
		NativeToken: "ETH",

		ChainID: 11155111,

		DefaultAddressType: AddressEVM,
	})
}
