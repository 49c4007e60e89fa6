// Package cache provides a generic LRU cache.
//
//	c := cache.New[string, *tmatch.Image](64)
//	c.Set("ok_button.png", img)
//	img, ok := c.Get("ok_button.png")
//
// Loads through GetOrLoad are performed under the cache lock, so a key is
// loaded at most once even when many goroutines ask for it together.
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
