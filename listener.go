package main

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

// runListener accepts connections until the listener closes. When
// tlsConfig is non-nil each connection is handshaken before entering
// the world; a failed handshake closes the socket and nothing else.
func (s *Server) runListener(ln net.Listener, tlsConfig *tls.Config) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isShuttingDown() {
				return
			}
			s.log.WithField("error", err).Error("accept failure")
			return
		}

		s.wg.Go(func() {
			s.handleNewConnection(conn, tlsConfig)
		})
	}
}

func (s *Server) handleNewConnection(conn net.Conn, tlsConfig *tls.Config) {
	if tlsConfig != nil {
		tlsConn := tls.Server(conn, tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			s.log.WithFields(logrus.Fields{
				"remote": conn.RemoteAddr().String(),
				"error":  err,
			}).Debug("TLS handshake failed")
			_ = conn.Close()
			return
		}
		conn = tlsConn
	}

	c := newClient(s, NewConn(conn))
	s.world.AddClient(c)

	s.log.WithField("remote", conn.RemoteAddr().String()).
		Debug("accepted connection")

	s.wg.Go(c.writeLoop)
	c.readLoop()
}

// bindListeners opens the plain listener and, when enabled, the TLS
// listener.
func (s *Server) bindListeners() error {
	plain, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config.Port))
	if err != nil {
		return err
	}
	s.listeners = append(s.listeners, plain)
	s.wg.Go(func() {
		s.runListener(plain, nil)
	})
	s.log.WithField("port", s.Config.Port).Info("listening")

	if !s.Config.TLSEnabled {
		return nil
	}

	cert, err := tls.LoadX509KeyPair(s.Config.TLSCert, s.Config.TLSKey)
	if err != nil {
		return err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	secure, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config.TLSPort))
	if err != nil {
		return err
	}
	s.listeners = append(s.listeners, secure)
	s.wg.Go(func() {
		s.runListener(secure, tlsConfig)
	})
	s.log.WithField("port", s.Config.TLSPort).Info("listening (TLS)")

	return nil
}
