// Package scene owns the per-iteration object instances of a dataset run.
//
// A Controller resolves every declared scene object at construction and
// captures its material slots once. Each iteration then follows
//
//	Randomize -> Materialize -> (Mask | Unmask)* -> Cleanup
//
// Randomize draws instance counts and seeds for particle classes from the
// supplied RNG. Materialize duplicates particle templates into live
// instances keyed by (class id, slot) and wraps static objects in fresh
// records. Mask paints every live instance with its identity colour and
// Unmask restores the captured slots exactly. Cleanup removes duplicates and
// restores template visibility; it may be called any number of times.
package scene
