package embedding

import "errors"

var ErrProviderUnavailable = errors.New("embedding provider unavailable")
