package utils_test

import (
	"testing"

	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/stretchr/testify/assert"
)

func TestDataSizeString(t *testing.T) {
	tests := map[string]struct {
		size utils.DataSize
		want string
	}{
		"bytes":     {size: 512, want: "512.00 B"},
		"kilobytes": {size: 2 * utils.Kilobyte, want: "2.00 KiB"},
		"megabytes": {size: 32 * utils.Megabyte, want: "32.00 MiB"},
		"gigabytes": {size: 1.5 * utils.Gigabyte, want: "1.50 GiB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, test.size.String())
		})
	}
}
