package badger

// NewMemoryRepositories creates in-memory host and ledger repositories for testing.
// Returns hostRepo, ledgerRepo, backend, and error.
// Caller must close the backend when done.
func NewMemoryRepositories() (*HostRepository, *LedgerRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewHostRepository(backend), NewLedgerRepository(backend, 0), backend, nil
}
