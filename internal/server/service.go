package server

import (
	"context"

	"github.com/kardianos/service"
	"github.com/rs/zerolog"
)

// ServiceConfig describes the exporter to the service manager.
func ServiceConfig(args []string) *service.Config {
	return &service.Config{
		Name:        "SystemStatsService",
		DisplayName: "System Stats Service",
		Description: "Exports load average and operating system information (scrape or push).",
		Arguments:   args,
	}
}

// Program runs the server under kardianos/service.
type Program struct {
	srv  *Server
	log  zerolog.Logger
	done chan error
}

// NewProgram wraps srv.
func NewProgram(srv *Server, log zerolog.Logger) *Program {
	return &Program{srv: srv, log: log}
}

// Start is called when the service starts. It must not block.
func (p *Program) Start(s service.Service) error {
	p.done = make(chan error, 1)
	go func() {
		err := p.srv.Start()
		if err != nil {
			p.log.Error().Err(err).Msg("HTTP server failed")
		}
		p.done <- err
	}()
	return nil
}

// Stop is called when the service stops.
func (p *Program) Stop(s service.Service) error {
	p.log.Info().Msg("Service stopping")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.srv.Shutdown(ctx); err != nil {
		return err
	}
	if p.done != nil {
		return <-p.done
	}
	return nil
}
