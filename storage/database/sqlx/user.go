package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/user"
)

const userColumns = "id, username, password, roles"

type userRow struct {
	ID       int    `db:"id"`
	Username string `db:"username"`
	Password string `db:"password"`
	Roles    string `db:"roles"` // JSON array
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) (userRow, error) {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return userRow{}, errors.Wrap(err, "encoding roles")
	}
	return userRow{
		ID:       usr.ID,
		Username: usr.Username,
		Password: string(usr.PasswordHash),
		Roles:    string(b),
	}, nil
}

func (repo userRepository) fromRow(row userRow) (user.User, error) {
	usr := user.User{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: []byte(row.Password),
	}
	if row.Roles != "" {
		if err := json.Unmarshal([]byte(row.Roles), &usr.Roles); err != nil {
			return user.User{}, errors.Wrap(err, "decoding roles")
		}
	}
	return usr, nil
}

func (repo userRepository) getOne(ctx context.Context, exec core.DBExecutor, where string, arg interface{}) (user.User, error) {
	var row userRow
	q := exec.Rebind("SELECT " + userColumns + " FROM usuarios WHERE " + where)
	if err := exec.GetContext(ctx, &row, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return repo.fromRow(row)
}

func (repo userRepository) GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getOne(ctx, repo.getExec(exec), "username = ?", username)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row, err := repo.toRow(usr)
	if err != nil {
		return user.User{}, err
	}
	id, err := insertReturningID(
		ctx,
		repo.getExec(exec),
		"INSERT INTO usuarios (username, password, roles) VALUES (?, ?, ?)",
		row.Username, row.Password, row.Roles,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row, err := repo.toRow(usr)
	if err != nil {
		return user.User{}, err
	}
	err = execAffecting(
		ctx,
		repo.getExec(exec),
		user.ErrNotFound,
		"UPDATE usuarios SET username = ?, password = ?, roles = ? WHERE id = ?",
		row.Username, row.Password, row.Roles, row.ID,
	)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}
