package xena

import (
	"strconv"
	"strings"
)

// Command and reply literals of the wire protocol.
const (
	CmdLogon         = "C_LOGON"
	CmdOwner         = "C_OWNER"
	CmdLogoff        = "C_LOGOFF"
	ParamReservation = "P_RESERVATION"
	CmdSync          = "SYNC"

	ReplyOK    = "<OK>"
	SyncMarker = "<SYNC>"

	// DefaultPassword is the factory logon password of a chassis.
	DefaultPassword = "xena"
	// DefaultOwner is the owner name claimed after logon.
	DefaultOwner = "overseer"
)

// EncodeLogon encodes `C_LOGON "<password>"`.
func EncodeLogon(password string) []byte {
	return quotedCommand(CmdLogon, password)
}

// EncodeOwner encodes `C_OWNER "<owner>"`.
func EncodeOwner(owner string) []byte {
	return quotedCommand(CmdOwner, owner)
}

// EncodeQuery encodes the reservation query for every module and port followed by SYNC,
// whose reply terminates the response stream.
func EncodeQuery() []byte {
	return []byte("*/* " + ParamReservation + " ?\n" + CmdSync + "\n")
}

// EncodeReservation encodes `<module>/<port> P_RESERVATION <VERB>`.
func EncodeReservation(verb Verb, module, port uint8) []byte {
	buf := make([]byte, 0, 40)
	buf = strconv.AppendUint(buf, uint64(module), 10)
	buf = append(buf, '/')
	buf = strconv.AppendUint(buf, uint64(port), 10)
	buf = append(buf, ' ')
	buf = append(buf, ParamReservation...)
	buf = append(buf, ' ')
	buf = append(buf, verb.String()...)

	return append(buf, '\n')
}

// EncodeLockAction encodes the reservation command selected by the caller's last known lock of
// module/port. The lock is advisory: it only decides which verb is sent.
func EncodeLockAction(current Lock, module, port uint8) ([]byte, error) {
	verb, err := current.Action()
	if err != nil {
		return nil, err
	}

	return EncodeReservation(verb, module, port), nil
}

// EncodeLogoff encodes C_LOGOFF.
func EncodeLogoff() []byte {
	return []byte(CmdLogoff + "\n")
}

// ValidCredential reports whether s can be embedded in a quoted logon or owner command.
func ValidCredential(s string) bool {
	return s != "" && !strings.ContainsAny(s, "\"\r\n")
}

func quotedCommand(cmd string, arg string) []byte {
	return []byte(cmd + ` "` + arg + "\"\n")
}
