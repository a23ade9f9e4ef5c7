package main

const (
	exampleDeviceAddress = "A4:C1:38:0B:72:1E"
	deviceAddressNote    = "Device address format: MAC address (AA:BB:CC:DD:EE:FF) or, on macOS, the 128-bit peripheral UUID\n  Use 'blelink scan' to discover devices"
)
