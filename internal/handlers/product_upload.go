package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
	"ordersite/internal/storage"
)

/*
ProductInput
- every field has a Set flag so updates only touch what was sent
- an empty categoryId clears the category
*/
type ProductInput struct {
	SKU            string
	SKUSet         bool
	Name           string
	NameSet        bool
	Description    string
	DescriptionSet bool
	Specs          string
	SpecsSet       bool
	CategoryID     *primitive.ObjectID
	CategoryIDSet  bool
	MinOrderQty    int
	MinOrderQtySet bool
	IsActive       bool
	IsActiveSet    bool
	ImageURL       string
	ImageURLSet    bool
	RemoveImage    bool
	ImageFile      *multipart.FileHeader
}

type productJSON struct {
	SKU         *string `json:"sku"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Specs       *string `json:"specs"`
	CategoryID  *string `json:"categoryId"`
	MinOrderQty *int    `json:"moq"`
	IsActive    *bool   `json:"isActive"`
	ImageURL    *string `json:"imageUrl"`
	RemoveImage bool    `json:"removeImage"`
}

// parseProductRequest accepts multipart/form-data (with an optional "image"
// file) or JSON.
func parseProductRequest(c *gin.Context) (ProductInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return parseMultipartProductRequest(c)
	}

	var body productJSON
	if err := c.ShouldBindWith(&body, binding.JSON); err != nil {
		return ProductInput{}, fmt.Errorf("invalid body: %w", err)
	}

	input := ProductInput{RemoveImage: body.RemoveImage}
	if body.SKU != nil {
		input.SKU, input.SKUSet = strings.TrimSpace(*body.SKU), true
	}
	if body.Name != nil {
		input.Name, input.NameSet = strings.TrimSpace(*body.Name), true
	}
	if body.Description != nil {
		input.Description, input.DescriptionSet = strings.TrimSpace(*body.Description), true
	}
	if body.Specs != nil {
		input.Specs, input.SpecsSet = strings.TrimSpace(*body.Specs), true
	}
	if body.CategoryID != nil {
		id, err := parseOptionalObjectID(*body.CategoryID)
		if err != nil {
			return ProductInput{}, err
		}
		input.CategoryID, input.CategoryIDSet = id, true
	}
	if body.MinOrderQty != nil {
		input.MinOrderQty, input.MinOrderQtySet = *body.MinOrderQty, true
	}
	if body.IsActive != nil {
		input.IsActive, input.IsActiveSet = *body.IsActive, true
	}
	if body.ImageURL != nil {
		input.ImageURL, input.ImageURLSet = strings.TrimSpace(*body.ImageURL), true
	}
	return input, nil
}

func parseMultipartProductRequest(c *gin.Context) (ProductInput, error) {
	if err := c.Request.ParseMultipartForm(storage.MaxImageSize + (1 << 20)); err != nil {
		return ProductInput{}, err
	}

	input := ProductInput{}

	if value, ok := lastPostForm(c, "sku"); ok {
		input.SKU, input.SKUSet = strings.TrimSpace(value), true
	}
	if value, ok := lastPostForm(c, "name"); ok {
		input.Name, input.NameSet = strings.TrimSpace(value), true
	}
	if value, ok := lastPostForm(c, "description"); ok {
		input.Description, input.DescriptionSet = strings.TrimSpace(value), true
	}
	if value, ok := lastPostForm(c, "specs"); ok {
		input.Specs, input.SpecsSet = strings.TrimSpace(value), true
	}
	if value, ok := lastPostForm(c, "imageUrl"); ok {
		input.ImageURL, input.ImageURLSet = strings.TrimSpace(value), true
	}

	if value, ok := lastPostForm(c, "categoryId"); ok {
		id, err := parseOptionalObjectID(value)
		if err != nil {
			return ProductInput{}, err
		}
		input.CategoryID, input.CategoryIDSet = id, true
	}

	if value, ok := lastPostForm(c, "moq"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return ProductInput{}, fmt.Errorf("invalid moq: %s", value)
		}
		input.MinOrderQty, input.MinOrderQtySet = parsed, true
	}

	if value, ok := lastPostForm(c, "isActive"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return ProductInput{}, fmt.Errorf("invalid isActive: %s", value)
		}
		input.IsActive, input.IsActiveSet = parsed, true
	}

	if value, ok := lastPostForm(c, "removeImage"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return ProductInput{}, fmt.Errorf("invalid removeImage: %s", value)
		}
		input.RemoveImage = parsed
	}

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		input.ImageFile = file
	case !errors.Is(err, http.ErrMissingFile):
		return ProductInput{}, err
	}

	return input, nil
}

// lastPostForm returns the last value of a repeated form field; checkbox
// widgets post a hidden "false" before the checked value.
func lastPostForm(c *gin.Context, key string) (string, bool) {
	values, ok := c.GetPostFormArray(key)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

func parseOptionalObjectID(value string) (*primitive.ObjectID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid categoryId: %s", trimmed)
	}
	return &id, nil
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

// patch converts the input into a repository patch; imageURL is the freshly
// stored upload, if any.
func (in ProductInput) patch(imageURL string) models.ProductPatch {
	p := models.ProductPatch{}
	if in.SKUSet {
		p.SKU = &in.SKU
	}
	if in.NameSet {
		p.Name = &in.Name
	}
	if in.DescriptionSet {
		p.Description = &in.Description
	}
	if in.SpecsSet {
		p.Specs = &in.Specs
	}
	if in.CategoryIDSet {
		if in.CategoryID != nil {
			p.CategoryID = in.CategoryID
		} else {
			p.ClearCategory = true
		}
	}
	if in.MinOrderQtySet {
		p.MinOrderQty = &in.MinOrderQty
	}
	if in.IsActiveSet {
		p.IsActive = &in.IsActive
	}
	switch {
	case imageURL != "":
		p.ImageURL = &imageURL
	case in.RemoveImage:
		p.ClearImage = true
	case in.ImageURLSet && in.ImageURL != "":
		p.ImageURL = &in.ImageURL
	case in.ImageURLSet:
		p.ClearImage = true
	}
	return p
}
