package loadlib

import (
	"sync"
)

// VMap is a thread-safe generic map with read-write mutex protection.
type VMap[kT comparable, vT any] struct {
	kv map[kT]vT
	mu sync.RWMutex
}

// NewVMap creates and returns a new empty VMap.
func NewVMap[kT comparable, vT any]() *VMap[kT, vT] {
	return &VMap[kT, vT]{
		kv: make(map[kT]vT),
	}
}

// SetIfAbsent stores val only when key is not present yet.
// Returns true if the value was stored.
func (vm *VMap[kT, vT]) SetIfAbsent(key kT, val vT) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if _, ok := vm.kv[key]; ok {
		return false
	}
	vm.kv[key] = val
	return true
}

// Load retrieves the value for key and whether it was present.
func (vm *VMap[kT, vT]) Load(key kT) (val vT, ok bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	val, ok = vm.kv[key]
	return
}

// Len returns the number of entries.
func (vm *VMap[kT, vT]) Len() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.kv)
}

// Range iterates over all key-value pairs with read lock protection.
// If f returns false, iteration stops early. f must not modify the map.
func (vm *VMap[kT, vT]) Range(f func(key kT, val vT) bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for k, v := range vm.kv {
		if !f(k, v) {
			return
		}
	}
}

// Reset removes every entry and returns how many there were.
func (vm *VMap[kT, vT]) Reset() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	n := len(vm.kv)
	vm.kv = make(map[kT]vT)
	return n
}
