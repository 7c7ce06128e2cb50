package chain

func init() {
	// Liquid (L-BTC), the Elements-based Bitcoin sidechain used for
	// confidential swap settlement. Params mirror Blockstream's Elements
	// mainnet/testnet network definitions.
	Register("L-BTC", Mainnet, &Params{
		Symbol:   "L-BTC",
		Name:     "Liquid Bitcoin",
		Type:     ChainTypeBitcoin,
		Decimals: 8,

		PubKeyHashAddrID: 0x39, // P...
		ScriptHashAddrID: 0x27, // G...
		Bech32HRP:        "ex",
		WIF:              0x80,

		SupportsSegWit:  true,
		SupportsTaproot: true,

		DefaultAddressType: AddressP2WSH,
	})

	Register("L-BTC", Testnet, &Params{
		Symbol:   "L-BTC",
		Name:     "Liquid Testnet",
		Type:     ChainTypeBitcoin,
		Decimals: 8,

		PubKeyHashAddrID: 0x24, // t...
		ScriptHashAddrID: 0x13, // Q...
		Bech32HRP:        "tex",
		WIF:              0xEF,

		SupportsSegWit:  true,
		SupportsTaproot: true,

		DefaultAddressType: AddressP2WSH,
	})
}
