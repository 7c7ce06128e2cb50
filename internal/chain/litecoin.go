package chain

func init() {
	Register("LTC", Mainnet, &Params{
		Symbol:   "LTC",
		Name:     "Litecoin",
		Type:     ChainTypeBitcoin,
		Decimals: 8,

		PubKeyHashAddrID: 0x30, // L...
		ScriptHashAddrID: 0x32, // M...
		Bech32HRP:        "ltc",
		WIF:              0xB0,

		SupportsSegWit:  true,
		SupportsTaproot: true,

		DefaultAddressType: AddressP2WSH,
	})

	Register("LTC", Testnet, &Params{
		Symbol:   "LTC",
		Name:     "Litecoin Testnet",
		Type:     ChainTypeBitcoin,
		Decimals: 8,

		PubKeyHashAddrID: 0x6F, // m or n
		ScriptHashAddrID: 0x3A, // Q...
		Bech32HRP:        "tltc",
		WIF:              0xEF,

		SupportsSegWit:  true,
		SupportsTaproot: true,

		DefaultAddressType: AddressP2WSH,
	})
}
