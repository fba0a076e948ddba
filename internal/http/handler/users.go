package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"formsapi/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Register signs up a viewer account and returns a session.
//
//	@Summary	Register
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		service.RegisterInput	true	"account"
//	@Success	201		{object}	service.Session
//	@Failure	400		{object}	errorPayload
//	@Failure	409		{object}	errorPayload
//	@Router		/auth/register [post]
func Register(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.RegisterInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		sess, err := svc.Register(c.UserContext(), in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	}
}

// Login exchanges email and password for a token.
//
//	@Summary	Login
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		loginRequest	true	"credentials"
//	@Success	200		{object}	service.Session
//	@Failure	401		{object}	errorPayload
//	@Router		/auth/login [post]
func Login(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in loginRequest
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		sess, err := svc.Login(c.UserContext(), in.Email, in.Password)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(sess)
	}
}

// Me returns the authenticated user.
//
//	@Summary	Current user
//	@Tags		users
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	model.User
//	@Router		/users/me [get]
func Me(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.Me(c.UserContext(), identity(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(u)
	}
}

// ChangePassword replaces the password of the authenticated user.
//
//	@Summary	Change password
//	@Tags		users
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		changePasswordRequest	true	"passwords"
//	@Success	200		{object}	service.Session
//	@Router		/users/me/password [post]
func ChangePassword(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in changePasswordRequest
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		sess, err := svc.ChangePassword(c.UserContext(), identity(c), in.OldPassword, in.NewPassword)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(sess)
	}
}

// ListUsers returns accounts newest first.
//
//	@Summary	List users
//	@Tags		users
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	service.UserListResult
//	@Router		/users [get]
func ListUsers(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, bad := pagination(c)
		if bad != nil {
			return writeError(c, fiber.StatusBadRequest, bad.code, bad.message)
		}
		res, err := svc.List(c.UserContext(), identity(c), limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

func userID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// GetUser returns one account.
//
//	@Summary	Get user
//	@Tags		users
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"user id"
//	@Success	200	{object}	model.User
//	@Router		/users/{id} [get]
func GetUser(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := userID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.Get(c.UserContext(), identity(c), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(u)
	}
}

// UpdateUser patches an account. Only admins may change the role.
//
//	@Summary	Update user
//	@Tags		users
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"user id"
//	@Param		body	body		service.UserUpdate	true	"changes"
//	@Success	200		{object}	model.User
//	@Router		/users/{id} [patch]
func UpdateUser(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := userID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var in service.UserUpdate
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		u, err := svc.Update(c.UserContext(), identity(c), id, in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(u)
	}
}

// DeleteUser removes an account.
//
//	@Summary	Delete user
//	@Tags		users
//	@Security	BearerAuth
//	@Param		id	path	string	true	"user id"
//	@Success	204
//	@Router		/users/{id} [delete]
func DeleteUser(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := userID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), identity(c), id); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
