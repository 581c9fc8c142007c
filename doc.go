// Package kvo provides key-value observation: subscribe to changes of named
// properties on an object and receive typed old/new value pairs.
//
// # Objects
//
// An Object is a bag of named properties that notifies registered observers
// on every assignment, synchronously and on the assigning goroutine:
//
//	player := kvo.NewObject()
//	player.Set("score", 0)
//
// Notification fires on assignment, not on inequality. Setting "score" to 5
// twice notifies twice, the second time with old and new both 5.
//
// # Observers
//
// KeyObserver watches one property and converts both sides to a static type.
// A side is nil when the property was absent or held a value of another type:
//
//	obs, err := kvo.NewKeyObserver[int](player, "score", func(prev, curr *int) {
//	    // prev == 0, curr == 5 after player.Set("score", 5)
//	})
//	defer obs.Stop()
//
// TargetObserver watches several properties with one untyped handler:
//
//	obs, err := kvo.NewTargetObserver(player, []string{"score", "lives"},
//	    func(c kvo.Change) {
//	        log.Printf("%s: %v -> %v", c.Key, c.Old, c.New)
//	    })
//
// Both stop on Stop, or automatically once they become unreachable and are
// garbage collected. Keep a reference for as long as changes matter.
//
// # Proxy
//
// Both observers are built on Proxy, the single low-level observer that
// registers for every key on the Object, matches incoming changes against its
// key list and forwards them to a Delegate. The Proxy only holds a weak
// reference to its Delegate; changes that arrive after the Delegate is gone
// are dropped.
//
// # Bindings
//
// A Binding keeps an Object in line with documents from a Source: a YAML
// file (pkg/file), a Redis hash (pkg/redis), a Consul KV prefix (pkg/consul)
// or rows of a PostgreSQL table (pkg/postgres). Changed keys are Set and
// removed keys are Unset, so observers see ordinary property changes:
//
//	b := kvo.Bind(player, file.New("player.yaml")).Codec(kvo.YAMLCodec{})
//	if err := b.Start(ctx); err != nil {
//	    log.Printf("initial document failed: %v", err)
//	}
//
// # Observability
//
// Registration, dispatch, dropped changes, type mismatches and Binding state
// transitions are emitted as capitan signals (see signals.go).
package kvo
