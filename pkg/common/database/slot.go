package database

import "sync"

// SlotKey is where the database client survives development reloads.
const SlotKey = "db-client"

// slots is the only process-wide state in this package. Holders built in
// non-production environments read and write it; production never does.
var slots = struct {
	sync.Mutex
	m map[string]Client
}{m: make(map[string]Client)}

// Slot returns the client stored under key, if any.
func Slot(key string) (Client, bool) {
	slots.Lock()
	defer slots.Unlock()
	c, ok := slots.m[key]
	return c, ok
}

func storeSlot(key string, c Client) {
	slots.Lock()
	slots.m[key] = c
	slots.Unlock()
}

// clearSlot removes key only while it still holds c.
func clearSlot(key string, c Client) {
	slots.Lock()
	if cur, ok := slots.m[key]; ok && cur == c {
		delete(slots.m, key)
	}
	slots.Unlock()
}
