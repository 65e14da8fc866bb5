package utils

import (
	"fmt"
)

const (
	Kilobyte = 1024
	Megabyte = 1024 * Kilobyte
	Gigabyte = 1024 * Megabyte
)

type DataSize float64

func (d DataSize) String() string {
	switch {
	case d >= Gigabyte:
		return fmt.Sprintf("%.2f GiB", d/Gigabyte)
	case d >= Megabyte:
		return fmt.Sprintf("%.2f MiB", d/Megabyte)
	case d >= Kilobyte:
		return fmt.Sprintf("%.2f KiB", d/Kilobyte)
	}
	return fmt.Sprintf("%.2f B", d)
}
