package order

// SampleOrders returns the demonstration data loaded when seeding is enabled.
func SampleOrders() []Order {
	return []Order{
		{ID: "ORD-001", Product: "CORO-001", Description: "Corona Extra 355ml", Lot: "L2024-001", PreHop: "PH-01", DescOrder: "DO-1234", Plant: "PLT-01", Line: "L-01", Battery: "B-001", Status: StatusPending},
		{ID: "ORD-002", Product: "CORO-002", Description: "Corona Light 355ml", Lot: "L2024-001", PreHop: "PH-01", DescOrder: "DO-1235", Plant: "PLT-01", Line: "L-02", Battery: "B-002", Status: StatusPending},
		{ID: "ORD-003", Product: "MOD-001", Description: "Modelo Especial 355ml", Lot: "L2024-002", PreHop: "PH-02", DescOrder: "DO-1236", Plant: "PLT-02", Line: "L-01", Battery: "B-003", Status: StatusReleased},
		{ID: "ORD-004", Product: "PAC-001", Description: "Pacifico Clara 355ml", Lot: "L2024-003", PreHop: "PH-03", DescOrder: "DO-1237", Plant: "PLT-01", Line: "L-03", Battery: "B-004", Status: StatusPending},
		{ID: "ORD-005", Product: "NEG-001", Description: "Negra Modelo 355ml", Lot: "L2024-003", PreHop: "PH-03", DescOrder: "DO-1238", Plant: "PLT-02", Line: "L-02", Battery: "B-005", Status: StatusPending},
	}
}
