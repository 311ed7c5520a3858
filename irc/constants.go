package irc

// Commands the server understands.
const (
	CmdAdmin        = "ADMIN"
	CmdAuthenticate = "AUTHENTICATE"
	CmdAway         = "AWAY"
	CmdCap          = "CAP"
	CmdError        = "ERROR"
	CmdInfo         = "INFO"
	CmdInvite       = "INVITE"
	CmdIson         = "ISON"
	CmdJoin         = "JOIN"
	CmdKick         = "KICK"
	CmdKill         = "KILL"
	CmdList         = "LIST"
	CmdLusers       = "LUSERS"
	CmdMode         = "MODE"
	CmdMotd         = "MOTD"
	CmdNames        = "NAMES"
	CmdNick         = "NICK"
	CmdNotice       = "NOTICE"
	CmdOper         = "OPER"
	CmdPart         = "PART"
	CmdPass         = "PASS"
	CmdPing         = "PING"
	CmdPong         = "PONG"
	CmdPrivmsg      = "PRIVMSG"
	CmdQuit         = "QUIT"
	CmdTime         = "TIME"
	CmdTopic        = "TOPIC"
	CmdUser         = "USER"
	CmdUserhost     = "USERHOST"
	CmdVersion      = "VERSION"
	CmdWho          = "WHO"
	CmdWhois        = "WHOIS"
	CmdWhowas       = "WHOWAS"
)

// Numeric replies.
const (
	RplWelcome  = "001" // :Welcome message
	RplYourhost = "002" // :Your host is...
	RplCreated  = "003" // :This server was created...
	RplMyinfo   = "004" // <servername> <version> <umodes> <chan modes>
	RplIsupport = "005" // 1*13<TOKEN[=value]> :are supported by this server

	RplUmodeis       = "221" // <modes>
	RplLuserclient   = "251" // :<int> users and <int> services on <int> servers
	RplLuserop       = "252" // <int> :operator(s) online
	RplLuserunknown  = "253" // <int> :unknown connection(s)
	RplLuserchannels = "254" // <int> :channels formed
	RplLuserme       = "255" // :I have <int> clients and <int> servers
	RplAdminme       = "256" // <server> :Administrative info
	RplAdminloc1     = "257" // :<info>
	RplAdminloc2     = "258" // :<info>
	RplAdminemail    = "259" // :<info>

	RplAway          = "301" // <nick> :<away message>
	RplUserhost      = "302" // :*1<reply> *( " " <reply> )
	RplIson          = "303" // :*1<nick> *( " " <nick> )
	RplUnaway        = "305" // :You are no longer marked as being away
	RplNowaway       = "306" // :You have been marked as being away
	RplWhoisuser     = "311" // <nick> <user> <host> * :<realname>
	RplWhoisserver   = "312" // <nick> <server> :<server info>
	RplWhoisoperator = "313" // <nick> :is an IRC operator
	RplWhowasuser    = "314" // <nick> <user> <host> * :<realname>
	RplEndofwho      = "315" // <name> :End of WHO list
	RplEndofwhois    = "318" // <nick> :End of WHOIS list
	RplWhoischannels = "319" // <nick> :*( (@/+) <channel> " " )
	RplListstart     = "321" // Channel :Users Name
	RplList          = "322" // <channel> <# visible> :<topic>
	RplListend       = "323" // :End of LIST
	RplChannelmodeis = "324" // <channel> <modes> <mode params>
	RplWhoisaccount  = "330" // <nick> <account> :is logged in as
	RplNotopic       = "331" // <channel> :No topic is set
	RplTopic         = "332" // <channel> :<topic>
	RplInviting      = "341" // <nick> <channel>
	RplVersion       = "351" // <version> <servername> :<comments>
	RplWhoreply      = "352" // <channel> <user> <host> <server> <nick> H/G :<hops> <realname>
	RplNamreply      = "353" // <=/*/@> <channel> :1*(@/ /+nick)
	RplEndofnames    = "366" // <channel> :End of NAMES list
	RplBanlist       = "367" // <channel> <ban mask>
	RplEndofbanlist  = "368" // <channel> :End of channel ban list
	RplEndofwhowas   = "369" // <nick> :End of WHOWAS
	RplInfo          = "371" // :<info>
	RplMotd          = "372" // :- <text>
	RplEndofinfo     = "374" // :End of INFO list
	RplMotdstart     = "375" // :- <servername> Message of the day -
	RplEndofmotd     = "376" // :End of MOTD command
	RplYoureoper     = "381" // :You are now an IRC operator
	RplTime          = "391" // <servername> :<local time>

	ErrNosuchnick       = "401" // <nick> :No such nick/channel
	ErrNosuchchannel    = "403" // <channel> :No such channel
	ErrCannotsendtochan = "404" // <channel> :Cannot send to channel
	ErrWasnosuchnick    = "406" // <nick> :There was no such nickname
	ErrNoorigin         = "409" // :No origin specified
	ErrNorecipient      = "411" // :No recipient given (<command>)
	ErrNotexttosend     = "412" // :No text to send
	ErrUnknowncommand   = "421" // <command> :Unknown command
	ErrNonicknamegiven  = "431" // :No nickname given
	ErrErroneusnickname = "432" // <nick> :Erroneous nickname
	ErrNicknameinuse    = "433" // <nick> :Nickname is already in use
	ErrUsernotinchannel = "441" // <nick> <channel> :They aren't on that channel
	ErrNotonchannel     = "442" // <channel> :You're not on that channel
	ErrUseronchannel    = "443" // <user> <channel> :is already on channel
	ErrNeedmoreparams   = "461" // <command> :Not enough parameters
	ErrAlreadyregistred = "462" // :Unauthorized command (already registered)
	ErrPasswdmismatch   = "464" // :Password incorrect
	ErrChannelisfull    = "471" // <channel> :Cannot join channel (+l)
	ErrUnknownmode      = "472" // <char> :is unknown mode char to me
	ErrInviteonlychan   = "473" // <channel> :Cannot join channel (+i)
	ErrBannedfromchan   = "474" // <channel> :Cannot join channel (+b)
	ErrBadchannelkey    = "475" // <channel> :Cannot join channel (+k)
	ErrNoprivileges     = "481" // :Permission Denied- You're not an IRC operator
	ErrChanoprivsneeded = "482" // <channel> :You're not channel operator
	ErrUmodeunknownflag = "501" // :Unknown MODE flag
	ErrUsersdontmatch   = "502" // :Cannot change mode for other users

	RplLoggedin    = "900" // <nick!user@host> <account> :You are now logged in
	RplLoggedout   = "901" // <nick!user@host> :You are now logged out
	ErrNicklocked  = "902" // :You must use a nick assigned to you
	RplSaslsuccess = "903" // :SASL authentication successful
	ErrSaslfail    = "904" // :SASL authentication failed
	ErrSasltoolong = "905" // :SASL message too long
	ErrSaslaborted = "906" // :SASL authentication aborted
	ErrSaslalready = "907" // :You have already authenticated
)
