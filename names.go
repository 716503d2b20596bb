package main

import (
	"errors"
	"math/rand"
	"sync"
)

// ErrNamesExhausted is returned once every name in the pool has been handed
// out. The pool size bounds the number of distinct players per event.
var ErrNamesExhausted = errors.New("display name pool exhausted")

// animalNames is the default pool of pseudonymous display names. Sized for
// the ~100 simultaneous players the server is built around.
var animalNames = []string{
	"Aardvark", "Albatross", "Alpaca", "Anteater", "Antelope", "Armadillo",
	"Axolotl", "Badger", "Bat", "Bear", "Beaver", "Bison",
	"Bobcat", "Buffalo", "Camel", "Capybara", "Caracal", "Caribou",
	"Cassowary", "Chameleon", "Cheetah", "Chinchilla", "Chipmunk", "Cobra",
	"Condor", "Cougar", "Coyote", "Crane", "Crow", "Dingo",
	"Dolphin", "Donkey", "Dormouse", "Dragonfly", "Duck", "Eagle",
	"Echidna", "Elephant", "Elk", "Emu", "Falcon", "Ferret",
	"Finch", "Flamingo", "Fox", "Gazelle", "Gecko", "Gibbon",
	"Giraffe", "Goose", "Gopher", "Gorilla", "Grouse", "Hamster",
	"Hedgehog", "Heron", "Hippo", "Hornbill", "Hyena", "Ibex",
	"Iguana", "Impala", "Jackal", "Jaguar", "Jay", "Kangaroo",
	"Kingfisher", "Kiwi", "Koala", "Kudu", "Lemming", "Lemur",
	"Leopard", "Llama", "Lynx", "Macaw", "Magpie", "Manatee",
	"Mandrill", "Marmot", "Meerkat", "Mongoose", "Moose", "Narwhal",
	"Newt", "Ocelot", "Okapi", "Opossum", "Osprey", "Ostrich",
	"Otter", "Owl", "Panda", "Pangolin", "Panther", "Parrot",
	"Pelican", "Penguin", "Pheasant", "Platypus", "Porcupine", "Puffin",
	"Quokka", "Rabbit", "Raccoon", "Raven", "Reindeer", "Rhino",
	"Seal", "Serval", "Skunk", "Sloth", "Squirrel", "Stoat",
	"Swan", "Tapir", "Toucan", "Turtle", "Walrus", "Wombat",
}

// nameAllocator hands out unused names from a fixed pool. Names are never
// recycled within a process lifetime, so a reconnecting player can keep the
// name bound to their token without risk of collision.
type nameAllocator struct {
	mu   sync.Mutex
	pool []string
	used map[string]bool
}

func newNameAllocator(pool []string) *nameAllocator {
	return &nameAllocator{
		pool: pool,
		used: make(map[string]bool, len(pool)),
	}
}

// allocate picks a random unused name and marks it used.
func (a *nameAllocator) allocate() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	free := make([]string, 0, len(a.pool)-len(a.used))
	for _, name := range a.pool {
		if !a.used[name] {
			free = append(free, name)
		}
	}
	if len(free) == 0 {
		return "", ErrNamesExhausted
	}

	name := free[rand.Intn(len(free))]
	a.used[name] = true

	return name, nil
}

// remaining reports how many names are still available.
func (a *nameAllocator) remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.pool) - len(a.used)
}
