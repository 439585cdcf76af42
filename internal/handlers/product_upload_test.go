package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func multipartContext(t *testing.T, fields [][2]string, image []byte) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range fields {
		require.NoError(t, writer.WriteField(f[0], f[1]))
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("PUT", "/admin/api/products/1", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseMultipartProductRequest_PicksLastIsActiveValue(t *testing.T) {
	c := multipartContext(t, [][2]string{
		{"isActive", "false"},
		{"isActive", "on"},
		{"moq", "12"},
	}, nil)

	parsed, err := parseMultipartProductRequest(c)
	if err != nil {
		t.Fatalf("parseMultipartProductRequest returned error: %v", err)
	}
	if !parsed.IsActiveSet || !parsed.IsActive {
		t.Fatalf("expected isActive=true, got %+v", parsed)
	}
	if !parsed.MinOrderQtySet || parsed.MinOrderQty != 12 {
		t.Fatalf("expected moq=12, got %+v", parsed)
	}
	if parsed.SKUSet || parsed.NameSet || parsed.ImageFile != nil {
		t.Fatalf("unexpected fields set: %+v", parsed)
	}
}

func TestParseMultipartProductRequest_EmptyCategoryClears(t *testing.T) {
	c := multipartContext(t, [][2]string{{"categoryId", ""}, {"name", "  ボルト M8  "}}, []byte("png"))

	parsed, err := parseMultipartProductRequest(c)
	require.NoError(t, err)

	assert.True(t, parsed.CategoryIDSet)
	assert.Nil(t, parsed.CategoryID)
	assert.Equal(t, "ボルト M8", parsed.Name)
	require.NotNil(t, parsed.ImageFile)
	assert.Equal(t, "photo.png", parsed.ImageFile.Filename)

	patch := parsed.patch("")
	assert.True(t, patch.ClearCategory)
	assert.Nil(t, patch.SKU)
}

func TestParseMultipartProductRequest_RejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"moq":        {"moq", "many"},
		"isActive":   {"isActive", "maybe"},
		"categoryId": {"categoryId", "not-an-id"},
	}
	for name, field := range cases {
		t.Run(name, func(t *testing.T) {
			c := multipartContext(t, [][2]string{field}, nil)
			_, err := parseMultipartProductRequest(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestParseProductRequest_JSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	categoryID := primitive.NewObjectID()
	req := httptest.NewRequest("POST", "/admin/api/products",
		strings.NewReader(`{"sku":"B-8","name":"Bolt","categoryId":"`+categoryID.Hex()+`","moq":5,"removeImage":true}`))
	req.Header.Set("Content-Type", "application/json")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	parsed, err := parseProductRequest(c)
	require.NoError(t, err)
	assert.Equal(t, "B-8", parsed.SKU)
	require.NotNil(t, parsed.CategoryID)
	assert.Equal(t, categoryID, *parsed.CategoryID)
	assert.Equal(t, 5, parsed.MinOrderQty)
	assert.False(t, parsed.IsActiveSet)
	assert.True(t, parsed.RemoveImage)
}

func TestProductInputPatch_ImagePrecedence(t *testing.T) {
	uploaded := ProductInput{RemoveImage: true}.patch("/uploads/new.png")
	require.NotNil(t, uploaded.ImageURL)
	assert.Equal(t, "/uploads/new.png", *uploaded.ImageURL)
	assert.False(t, uploaded.ClearImage)

	removed := ProductInput{RemoveImage: true}.patch("")
	assert.True(t, removed.ClearImage)

	blanked := ProductInput{ImageURLSet: true}.patch("")
	assert.True(t, blanked.ClearImage)

	untouched := ProductInput{}.patch("")
	assert.True(t, untouched.IsEmpty())
}
