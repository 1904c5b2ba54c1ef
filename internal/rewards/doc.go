// Package rewards grants the recurring credit allotment that comes with
// an active subscription, catching up missed intervals after downtime.
package rewards
