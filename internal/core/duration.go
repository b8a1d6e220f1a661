package core

import (
	"fmt"
	"strconv"
	"time"
)

// FormatClock renders d as HH:MM:SS, the running timer display.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatHM renders d as "Xh Ym", truncating seconds.
func FormatHM(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
}

// FormatHours renders seconds as decimal hours with the given precision.
func FormatHours(seconds int64, decimals int) string {
	return strconv.FormatFloat(float64(seconds)/3600, 'f', decimals, 64)
}
