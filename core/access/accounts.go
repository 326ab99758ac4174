// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/perms"
)

// HolderType says which kind of principal holds a permission rule
type HolderType string

// the principal kinds
const (
	HolderAccount      HolderType = "account"
	HolderGroup        HolderType = "group"
	HolderOrganization HolderType = "organization"
	HolderAPIKey       HolderType = "apikey"
)

// EnsureSchema creates the account, group, membership, permission and apikey
// tables if they do not exist yet.
func EnsureSchema(db *csql.DB) error {
	_, err := db.Exec(`CREATE table IF NOT EXISTS ` + db.Schema + `.account
(account_id uuid DEFAULT uuid_generate_v4(),
identity varchar NOT NULL UNIQUE,
superuser boolean NOT NULL DEFAULT false,
created_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(account_id)
);
CREATE table IF NOT EXISTS ` + db.Schema + `.usergroup
(group_id uuid DEFAULT uuid_generate_v4(),
name varchar NOT NULL UNIQUE,
PRIMARY KEY(group_id)
);
CREATE table IF NOT EXISTS ` + db.Schema + `.account_usergroup
(account_id uuid NOT NULL REFERENCES ` + db.Schema + `.account(account_id) ON DELETE CASCADE,
group_id uuid NOT NULL REFERENCES ` + db.Schema + `.usergroup(group_id) ON DELETE CASCADE,
PRIMARY KEY(account_id, group_id)
);
CREATE table IF NOT EXISTS ` + db.Schema + `.permission
(holder_type varchar NOT NULL,
holder_id uuid NOT NULL,
namespace varchar NOT NULL,
flags integer NOT NULL,
PRIMARY KEY(holder_type, holder_id, namespace)
);
CREATE table IF NOT EXISTS ` + db.Schema + `.apikey
(apikey_id uuid DEFAULT uuid_generate_v4(),
prefix varchar NOT NULL UNIQUE,
digest varchar NOT NULL,
name varchar NOT NULL,
email varchar NOT NULL DEFAULT '',
account_id uuid,
organization_id uuid,
revoked boolean NOT NULL DEFAULT false,
created_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(apikey_id)
);`)
	return err
}

// EnsureGroup creates the named group if it does not exist yet and
// returns its id.
func EnsureGroup(db *csql.DB, name string) (uuid.UUID, error) {
	var groupID uuid.UUID
	err := db.QueryRow(`INSERT INTO `+db.Schema+`.usergroup(name) VALUES($1)
ON CONFLICT (name) DO UPDATE SET name=$1 RETURNING group_id;`, name).Scan(&groupID)
	return groupID, err
}

// CreateAccount creates an account for the identity and returns its id.
func CreateAccount(db *csql.DB, identity string, superuser bool) (uuid.UUID, error) {
	var accountID uuid.UUID
	err := db.QueryRow(`INSERT INTO `+db.Schema+`.account(identity,superuser) VALUES($1,$2)
ON CONFLICT (identity) DO UPDATE SET superuser=$2 RETURNING account_id;`, identity, superuser).Scan(&accountID)
	return accountID, err
}

// AddAccountToGroup makes the account a member of the named group.
func AddAccountToGroup(db *csql.DB, accountID uuid.UUID, groupName string) error {
	groupID, err := EnsureGroup(db, groupName)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO `+db.Schema+`.account_usergroup(account_id,group_id) VALUES($1,$2)
ON CONFLICT DO NOTHING;`, accountID, groupID)
	return err
}

// Grant gives the principal the flags over the namespace. An existing rule
// for the same namespace is replaced.
func Grant(db *csql.DB, holder HolderType, holderID uuid.UUID, namespace perms.Namespace, flags perms.Flag) error {
	_, err := db.Exec(`INSERT INTO `+db.Schema+`.permission(holder_type,holder_id,namespace,flags) VALUES($1,$2,$3,$4)
ON CONFLICT (holder_type,holder_id,namespace) DO UPDATE SET flags=$4;`,
		string(holder), holderID, string(namespace), int(flags))
	return err
}

// Revoke removes the principal's rule for the namespace.
func Revoke(db *csql.DB, holder HolderType, holderID uuid.UUID, namespace perms.Namespace) error {
	_, err := db.Exec(`DELETE FROM `+db.Schema+`.permission WHERE holder_type=$1 AND holder_id=$2 AND namespace=$3;`,
		string(holder), holderID, string(namespace))
	return err
}

// PermissionsOf loads the rule set held by a single principal.
func PermissionsOf(db *csql.DB, holder HolderType, holderID uuid.UUID) (perms.Set, error) {
	rows, err := db.Query(`SELECT namespace, flags FROM `+db.Schema+`.permission
WHERE holder_type=$1 AND holder_id=$2;`, string(holder), holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := perms.Set{}
	for rows.Next() {
		var namespace string
		var flags int
		if err := rows.Scan(&namespace, &flags); err != nil {
			return nil, err
		}
		set.Add(perms.Namespace(namespace), perms.Flag(flags))
	}
	return set, rows.Err()
}

// GroupPermissions loads the rule set of the named group. A missing group
// yields an empty set.
func GroupPermissions(db *csql.DB, name string) (perms.Set, error) {
	var groupID uuid.UUID
	err := db.QueryRow(`SELECT group_id FROM `+db.Schema+`.usergroup WHERE name=$1;`, name).Scan(&groupID)
	if err == csql.ErrNoRows {
		return perms.Set{}, nil
	}
	if err != nil {
		return nil, err
	}
	return PermissionsOf(db, HolderGroup, groupID)
}

// ClonePermissions copies all rules of one principal to another. This is how
// group permissions get transferred to an organization API key.
func ClonePermissions(db *csql.DB, fromHolder HolderType, fromID uuid.UUID, toHolder HolderType, toID uuid.UUID) error {
	_, err := db.Exec(`INSERT INTO `+db.Schema+`.permission(holder_type,holder_id,namespace,flags)
SELECT $3, $4, namespace, flags FROM `+db.Schema+`.permission WHERE holder_type=$1 AND holder_id=$2
ON CONFLICT (holder_type,holder_id,namespace) DO UPDATE SET flags=EXCLUDED.flags;`,
		string(fromHolder), fromID, string(toHolder), toID)
	return err
}

// AccountAuthorization builds the effective authorization for the identity:
// the account's own rules merged with the rules of all its groups.
// It returns nil if the identity has no account.
func AccountAuthorization(db *csql.DB, identity string) (*Authorization, error) {
	var accountID uuid.UUID
	var superuser bool
	err := db.QueryRow(`SELECT account_id, superuser FROM `+db.Schema+`.account WHERE identity=$1;`,
		identity).Scan(&accountID, &superuser)
	if err == csql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	set, err := PermissionsOf(db, HolderAccount, accountID)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT p.namespace, p.flags FROM `+db.Schema+`.permission p
JOIN `+db.Schema+`.account_usergroup m ON m.group_id = p.holder_id
WHERE p.holder_type='group' AND m.account_id=$1;`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var namespace string
		var flags int
		if err := rows.Scan(&namespace, &flags); err != nil {
			return nil, err
		}
		set.Add(perms.Namespace(namespace), perms.Flag(flags))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Authorization{
		Identity:    identity,
		Superuser:   superuser,
		Permissions: set,
	}, nil
}

// FunctionAccount is a function account created at service startup
type FunctionAccount struct {
	Identity  string
	Superuser bool
	Groups    []string
}

// EnsureFunctionAccounts creates the specified function accounts if they do not exist yet
func EnsureFunctionAccounts(db *csql.DB, accounts ...FunctionAccount) error {
	for _, account := range accounts {
		accountID, err := CreateAccount(db, account.Identity, account.Superuser)
		if err != nil {
			return fmt.Errorf("cannot create account %s: %w", account.Identity, err)
		}
		for _, group := range account.Groups {
			if err := AddAccountToGroup(db, accountID, group); err != nil {
				return fmt.Errorf("cannot add account %s to group %s: %w", account.Identity, group, err)
			}
		}
	}
	return nil
}
