package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"powerexec/cli/internal/toolkit"
)

// Special password values QSYGETPH accepts in place of a password.
var specialPasswords = []string{"*NOPWD", "*NOPWDCHK", "*NOPWDSTS"}

const (
	varGetHandle     = "qsygetph"
	varSetProfile    = "qwtsetp"
	varReleaseHandle = "qsyrlsph"
)

func isSpecialPassword(pwd string) bool {
	for _, p := range specialPasswords {
		if strings.EqualFold(pwd, p) {
			return true
		}
	}
	return false
}

func handleField(value string) toolkit.Data {
	return toolkit.Data{Var: "handle", Type: "12A", Value: value, Hex: true}
}

// getProfileHandle builds the QSYGETPH call. Special values go in a 10-byte
// field; real passwords are passed with their length and CCSID 37.
func getProfileHandle(user, password string) toolkit.Program {
	userID := toolkit.Data{Var: "userId", Type: "10A", Value: toolkit.Pad10(strings.ToUpper(user))}
	if isSpecialPassword(password) {
		return toolkit.Program{
			Name: "QSYGETPH", Lib: "QSYS", Var: varGetHandle,
			Parms: []toolkit.Field{
				userID,
				toolkit.Data{Var: "pwd", Type: "10A", Value: toolkit.Pad10(strings.ToUpper(password))},
				handleField(""),
				toolkit.ErrorCode(),
			},
		}
	}
	n := strconv.Itoa(len(password))
	return toolkit.Program{
		Name: "QSYGETPH", Lib: "QSYS", Var: varGetHandle,
		Parms: []toolkit.Field{
			userID,
			toolkit.Data{Var: "pwd", Type: n + "A", Value: password},
			handleField(""),
			toolkit.ErrorCode(),
			toolkit.Data{Var: "len", Type: "10i0", Value: n},
			toolkit.Data{Var: "ccsid", Type: "10i0", Value: "37"},
		},
	}
}

func setProfile(handle string) toolkit.Program {
	return toolkit.Program{
		Name: "QWTSETP", Lib: "QSYS", Var: varSetProfile,
		Parms: []toolkit.Field{handleField(handle), toolkit.ErrorCode()},
	}
}

func releaseProfileHandle(handle string) toolkit.Program {
	return toolkit.Program{
		Name: "QSYRLSPH", Lib: "QSYS", Var: varReleaseHandle,
		Parms: []toolkit.Field{handleField(handle), toolkit.ErrorCode()},
	}
}

// callProgram runs pgm and returns its envelope, failing unless it succeeded.
func callProgram(ctx context.Context, tk *toolkit.Toolkit, pgm toolkit.Program) (toolkit.Envelope, error) {
	out, err := tk.Call(ctx, toolkit.EncodeProgram(pgm))
	if err != nil {
		return nil, err
	}
	env := out.Get(pgm.Var)
	if _, ok := env["success"]; !ok {
		return env, fmt.Errorf("%s failed: %v", pgm.Name, env["error"])
	}
	return env, nil
}

// become swaps the session job to identity. A missing password is *NOPWD.
func (s *Session) become(ctx context.Context, tk *toolkit.Toolkit, identity Identity) error {
	password := identity.Password
	if password == "" {
		password = "*NOPWD"
	}
	env, err := callProgram(ctx, tk, getProfileHandle(identity.User, password))
	if err != nil {
		return err
	}
	handle, _ := env["handle"].(string)
	if strings.TrimSpace(handle) == "" {
		return fmt.Errorf("QSYGETPH returned no profile handle")
	}
	s.handle = handle
	s.profile = tk
	s.user = strings.ToUpper(identity.User)

	if _, err := callProgram(ctx, tk, setProfile(handle)); err != nil {
		return err
	}
	return nil
}

func (s *Session) releaseHandle(ctx context.Context) error {
	_, err := callProgram(ctx, s.profile, releaseProfileHandle(s.handle))
	s.handle = ""
	return err
}
