package services

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/go-ldap/ldap/v3"
)

var errLDAPDisabled = errors.New("LDAP is not enabled")

type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled && s.config.Host != ""
}

type LDAPUser struct {
	DN       string
	Username string
	Email    string
}

// Authenticate looks the user up with the service account and then binds as
// that user to verify the password.
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, errLDAPDisabled
	}
	if password == "" {
		// An empty password would be an unauthenticated bind, which many servers accept.
		return nil, ErrInvalidCredentials
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var conn *ldap.Conn
	var err error
	if s.config.UseSSL {
		conn, err = ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host}))
	} else {
		conn, err = ldap.DialURL("ldap://" + addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("bind LDAP service account: %w", err)
		}
	}

	filter := fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(username))
	result, err := conn.Search(ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		[]string{"dn", "mail", "uid", "sAMAccountName"},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("LDAP search: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, ErrInvalidCredentials
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	user := &LDAPUser{
		DN:       entry.DN,
		Username: entry.GetAttributeValue("uid"),
		Email:    entry.GetAttributeValue("mail"),
	}
	// Active Directory
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, nil
}
