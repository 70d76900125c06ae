package dto

// LoginDTO accepts JSON or a urlencoded form post from the login page.
type LoginDTO struct {
	Email       string `json:"email" form:"email" binding:"required"`
	Password    string `json:"password" form:"password" binding:"required"`
	CallbackURL string `json:"callbackUrl" form:"callbackUrl"`
}

type RegisterDTO struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
