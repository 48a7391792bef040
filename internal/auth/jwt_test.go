package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestHashAndCheckPassword(t *testing.T) {
	pwd := "s3cr3t-password"
	hash, err := HashPassword(pwd)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if err := CheckPassword(hash, pwd); err != nil {
		t.Fatalf("CheckPassword failed when password should match: %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("CheckPassword succeeded when it should have failed")
	}
}

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	id := bson.NewObjectID()
	token, _, err := m.GenerateToken(id, "test@example.com", "investor")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.Email != "test@example.com" || claims.Role != "investor" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	got, err := claims.ObjectID()
	if err != nil || got != id {
		t.Fatalf("ObjectID() = %v, %v; want %v", got, err, id)
	}
}

func TestJWTManager_NormalizeEmailClaim(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	var id bson.ObjectID
	token, _, err := m.GenerateToken(id, "User.Case@Example.COM", "entrepreneur")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.Email != "user.case@example.com" {
		t.Fatalf("expected normalized email in claims, got %s", claims.Email)
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("one", time.Minute).GenerateToken(bson.NewObjectID(), "a@example.com", "investor")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := NewJWTManager("two", time.Minute).VerifyToken(token); err == nil {
		t.Fatal("VerifyToken accepted a token signed with another secret")
	}
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	token, _, err := m.GenerateToken(bson.NewObjectID(), "a@example.com", "investor")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken accepted an expired token")
	}
}

func TestJWTManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: bson.NewObjectID().Hex(), Email: "a@example.com"}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}
	if _, err := NewJWTManager("test-secret", time.Minute).VerifyToken(s); err == nil {
		t.Fatal("VerifyToken accepted an unsigned token")
	}
}

func TestJWTManager_Rotation(t *testing.T) {
	// create a manager with two keys and active kid "k2"
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	var id bson.ObjectID

	tkn2, _, err := m.GenerateToken(id, "rot@example.com", "investor")
	if err != nil {
		t.Fatalf("GenerateToken (k2) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn2); err != nil {
		t.Fatalf("VerifyToken (k2) failed: %v", err)
	}

	// a token issued while k1 was active must still verify
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken(id, "rot@example.com", "investor")
	if err != nil {
		t.Fatalf("GenerateToken (k1) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn1); err != nil {
		t.Fatalf("VerifyToken (old k1) failed: %v", err)
	}

	// once k1 is retired its tokens stop verifying
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	if _, err := retired.VerifyToken(tkn1); err == nil {
		t.Fatal("VerifyToken accepted a token signed with a retired key")
	}
}

func TestNewJWTManagerFromKeys_UnknownActiveKid(t *testing.T) {
	m := NewJWTManagerFromKeys(map[string]string{"b": "x", "a": "y"}, "zzz", time.Minute)
	if m.activeKid != "a" {
		t.Fatalf("expected fallback to smallest kid, got %q", m.activeKid)
	}
}
