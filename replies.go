package main

import (
	"fmt"

	"github.com/malefirc/malefirc/irc"
)

func isNumericCommand(command string) bool {
	if len(command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if command[i] < '0' || command[i] > '9' {
			return false
		}
	}
	return true
}

// messageFromServer sends a message to the client with the server as
// prefix. Numerics get the client's nick (or *) prepended as their
// first parameter.
func (s *Server) messageFromServer(c *Client, command string,
	params []string) {
	if isNumericCommand(command) {
		params = append([]string{c.nickOrStar()}, params...)
	}

	c.maybeQueueMessage(irc.Message{
		Prefix:  s.Config.ServerName,
		Command: command,
		Params:  params,
	})
}

// noticeFromServer sends a server NOTICE to the client.
func (s *Server) noticeFromServer(c *Client, text string) {
	c.maybeQueueMessage(irc.Message{
		Prefix:  s.Config.ServerName,
		Command: irc.CmdNotice,
		Params:  []string{c.nickOrStar(), text},
	})
}

// lusersBurst sends the LUSERS numerics.
func (s *Server) lusersBurst(c *Client) {
	users, opers, unknown, channels := s.world.Counts()

	// 251 RPL_LUSERCLIENT
	s.messageFromServer(c, irc.RplLuserclient, []string{fmt.Sprintf(
		"There are %d users and 0 services on 1 servers", users)})

	// 252 RPL_LUSEROP
	s.messageFromServer(c, irc.RplLuserop, []string{
		fmt.Sprintf("%d", opers), "operator(s) online"})

	// 253 RPL_LUSERUNKNOWN
	s.messageFromServer(c, irc.RplLuserunknown, []string{
		fmt.Sprintf("%d", unknown), "unknown connection(s)"})

	// 254 RPL_LUSERCHANNELS
	s.messageFromServer(c, irc.RplLuserchannels, []string{
		fmt.Sprintf("%d", channels), "channels formed"})

	// 255 RPL_LUSERME
	s.messageFromServer(c, irc.RplLuserme, []string{fmt.Sprintf(
		"I have %d clients and 0 servers", users+unknown)})
}

// motdBurst sends the MOTD numerics.
func (s *Server) motdBurst(c *Client) {
	// 375 RPL_MOTDSTART
	s.messageFromServer(c, irc.RplMotdstart, []string{fmt.Sprintf(
		"- %s Message of the day - ", s.Config.ServerName)})

	// 372 RPL_MOTD
	s.messageFromServer(c, irc.RplMotd, []string{
		fmt.Sprintf("- %s", s.Config.MOTD)})

	// 376 RPL_ENDOFMOTD
	s.messageFromServer(c, irc.RplEndofmotd, []string{
		"End of MOTD command"})
}
