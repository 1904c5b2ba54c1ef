// Package clock provides the injectable time source used by the generation
// coordinator, purchase reconciler, and reward scheduler. Production code
// uses System; tests drive a Manual clock so delayed polls and reward periods
// can be exercised without real sleeps.
package clock
