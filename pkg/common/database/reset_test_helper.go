package database

// NOTE: This helper is intended ONLY for test code to allow resetting
// the reload slots between tests. It should not be used in production code.

// ResetForTest empties every reload slot without closing the clients.
func ResetForTest() {
	slots.Lock()
	slots.m = make(map[string]Client)
	slots.Unlock()
}
