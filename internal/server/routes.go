package server

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)
	s.router.Get("/status", s.handleStatus)
	s.router.Post("/sync", s.handleSync)
}
