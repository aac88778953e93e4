package httpserver

import "time"

// ShutdownTimeout bounds graceful shutdown, including draining the object cleaner.
var ShutdownTimeout = 15 * time.Second
