package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
)

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s: %s", name, c.Param(name)))
	}

	return id, nil
}

// parseAddress validates a hex address and returns its EIP-55 checksummed
// form, the canonical representation the ledger stores.
func parseAddress(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid address: %s", raw))
	}

	return common.HexToAddress(raw).Hex(), nil
}
