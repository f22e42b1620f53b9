package coordinator

// resetInit clears the singleton guard between tests.
func resetInit() { initialized.Store(false) }
