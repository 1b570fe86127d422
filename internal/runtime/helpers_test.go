package runtime_test

import (
	"strconv"
	"time"
)

const (
	timeout = 2 * time.Second
	tick    = time.Millisecond
)

func itoa(i int) string { return strconv.Itoa(i) }
