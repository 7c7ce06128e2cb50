package chain

func init() {
	Register("BTC", Mainnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin",
		Type:     ChainTypeBitcoin,
		Decimals: 8,

		PubKeyHashAddrID: 0x00, // 1...
		ScriptHashAddrID: 0x05, // 3...
		Bech32HRP:        "bc",
		WIF:              0x80,

		SupportsSegWit:  true,
		SupportsTaproot: true,

		DefaultAddressType: AddressP2WSH,
	})

	Register("BTC", Testnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin Testnet",
		Type:     ChainTypeBitcoin,
		Decimals: 8,

		PubKeyHashAddrID: 0x6F, // m or n
		ScriptHashAddrID: 0xC4, // 2...
		Bech32HRP:        "tb",
		WIF:              0xEF,

		SupportsSegWit:  true,
		SupportsTaproot: true,

		DefaultAddressType: AddressP2WSH,
	})
}
