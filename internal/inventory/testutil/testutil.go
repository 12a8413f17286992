package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/serial"
	"github.com/bitfantasy/nimo-inventory/internal/middleware"
)

const (
	TestSchema = "test_inventory"
	JWTSecret  = "nimo-inventory-jwt-secret-key"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "inventory")
	password := getEnv("DB_PASSWORD", "inventory123")
	dbname := getEnv("DB_NAME", "nimo_inventory")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Open connection with search_path in DSN so all pooled connections use the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// TestRegistry builds the registry used across engine tests: a pool table
// body/rail pair with a 6ft substitution, a shared cloth roll wrapping 7
// bodies, and a long-cut yield rule.
func TestRegistry(t *testing.T) *recipe.Registry {
	t.Helper()
	recipes := []recipe.Recipe{
		{
			UnitType: "body",
			Items: []recipe.Item{
				{Part: "mdf_sheet", Qty: 2},
				{Part: "long_cushion", Qty: 2},
				{Part: "short_cushion", Qty: 2},
				{Part: "cloth_roll", WrapEvery: 7},
				{Part: "leg_set", Qty: 1},
			},
			Overrides: []recipe.Override{
				{
					Size:   string(serial.SizeSixFoot),
					Remove: []string{"long_cushion", "short_cushion"},
					Add: []recipe.Item{
						{Part: "long_cushion_6ft", Qty: 2},
						{Part: "short_cushion_6ft", Qty: 2},
					},
				},
			},
		},
		{
			UnitType: "rail",
			Items: []recipe.Item{
				{Part: "rail_timber", Qty: 4},
				{Part: "corner_casting", Qty: 4},
			},
		},
	}
	yields := []recipe.YieldRule{
		{Sheet: "timber_sheet", Size: string(serial.SizeStandard), Cut: recipe.CutLong,
			Outputs: []recipe.YieldOutput{{Part: "long_cushion", Qty: 8}, {Part: "short_cushion", Qty: 3}}},
		{Sheet: "timber_sheet", Size: string(serial.SizeSixFoot), Cut: recipe.CutLong,
			Outputs: []recipe.YieldOutput{{Part: "long_cushion_6ft", Qty: 8}, {Part: "short_cushion_6ft", Qty: 2}}},
	}
	thresholds := map[string]int{"cloth_roll": 10, "leg_set": 3}
	pairs := []recipe.Pair{
		{Name: "set_7ft",
			Left:  recipe.PairSide{UnitType: "body", Size: string(serial.SizeStandard), Label: "台身"},
			Right: recipe.PairSide{UnitType: "rail", Size: string(serial.SizeStandard), Label: "顶轨"}},
	}
	r, err := recipe.New(recipes, yields, thresholds, pairs, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build test registry: %v", err)
	}
	return r
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"roles": roles,
		"iss":   "nimo-inventory",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Admin", []string{"inv_admin"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
