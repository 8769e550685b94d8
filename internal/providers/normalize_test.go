package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExchangeSuffix(t *testing.T) {
	assert.Equal(t, ".SS", exchangeSuffix("600519"))
	assert.Equal(t, ".SZ", exchangeSuffix("000001"))
	assert.Equal(t, ".SZ", exchangeSuffix("300750"))
	assert.Equal(t, ".BJ", exchangeSuffix("830799"))
	assert.Equal(t, "", exchangeSuffix(""))
}

func TestPadCode(t *testing.T) {
	assert.Equal(t, "000001", padCode("1"))
	assert.Equal(t, "600519", padCode("600519"))
	assert.Equal(t, "AAPL", padCode("AAPL"))
}

func TestPctToFraction(t *testing.T) {
	assert.InDelta(t, 0.0235, pctToFraction(2.35), 1e-9)
}

func TestYuan100MToYuan(t *testing.T) {
	assert.Equal(t, 1.5e10, yuan100MToYuan(150))
}
