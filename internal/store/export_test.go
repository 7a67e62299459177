package store

// Count returns the number of stored records with the given username.
func (s *MemoryStore) Count(username string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.byID {
		if u.Username == username {
			n++
		}
	}
	return n
}
