package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// PasswordTestSuite 密码工具测试套件
type PasswordTestSuite struct {
	suite.Suite
}

func (suite *PasswordTestSuite) TestHashAndVerify() {
	hash, err := HashPassword("CorrectPassword456")
	suite.Require().NoError(err)
	suite.True(strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	ok, err := VerifyPassword("CorrectPassword456", hash)
	suite.NoError(err)
	suite.True(ok)

	ok, err = VerifyPassword("correctpassword456", hash)
	suite.NoError(err)
	suite.False(ok)
}

func (suite *PasswordTestSuite) TestSaltedHashesDiffer() {
	h1, _ := HashPassword("same")
	h2, _ := HashPassword("same")
	suite.NotEqual(h1, h2)
}

func (suite *PasswordTestSuite) TestCustomConfig() {
	hash, err := HashPasswordWithConfig("pw", &PasswordConfig{Time: 2, Memory: 32 * 1024, Threads: 2, KeyLen: 16})
	suite.Require().NoError(err)
	suite.Contains(hash, "m=32768,t=2,p=2")

	ok, err := VerifyPassword("pw", hash)
	suite.NoError(err)
	suite.True(ok)
}

func (suite *PasswordTestSuite) TestInvalidHash() {
	for _, bad := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=1$m=1,t=1,p=1$a$b"} {
		_, err := VerifyPassword("pw", bad)
		suite.Error(err, bad)
	}
}

func (suite *PasswordTestSuite) TestRandomStrings() {
	s, err := GenerateRandomString(24)
	suite.Require().NoError(err)
	suite.Len(s, 24)

	id1 := GenerateSessionID()
	id2 := GenerateSessionID()
	suite.Len(id1, 32)
	suite.NotEqual(id1, id2)
}

func TestPasswordSuite(t *testing.T) {
	suite.Run(t, new(PasswordTestSuite))
}
