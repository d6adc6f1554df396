package handler

// SetRequestIDForTest replaces the request id source.
func SetRequestIDForTest(h *Handler, fn func() string) {
	h.newID = fn
}
