package utils

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-topology-engine/geo"
)

var ErrNoShapes = errors.New("no features with a geometry a shapefile can hold")

// dbfNameLength is the longest field name a DBF header can store.
const dbfNameLength = 10

// GenerateShapefileZip creates a zip holding jsonData as <baseName>.json
// and the features as a <baseName> shapefile. A shapefile holds a single
// geometry family; it is taken from the first feature that has a geometry
// and features of any other family are left out.
func GenerateShapefileZip(baseName string, jsonData []byte, features []*geo.Feature, log zerolog.Logger) ([]byte, error) {
	var zipBuffer bytes.Buffer
	zipWriter := zip.NewWriter(&zipBuffer)

	jsonFile, err := zipWriter.Create(baseName + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file in zip: %w", err)
	}
	if _, err := jsonFile.Write(jsonData); err != nil {
		return nil, fmt.Errorf("failed to write JSON data to zip: %w", err)
	}

	if err := addShapefileToZip(zipWriter, baseName, features, log); err != nil {
		return nil, fmt.Errorf("failed to add shapefile to zip: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}

	return zipBuffer.Bytes(), nil
}

// addShapefileToZip writes the shapefile to a temporary directory, since
// go-shp only writes to files, and copies its components into the zip.
func addShapefileToZip(zipWriter *zip.Writer, baseName string, features []*geo.Feature, log zerolog.Logger) error {
	tempDir, err := os.MkdirTemp("", "shapefile_")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	shapefilePath := filepath.Join(tempDir, baseName+".shp")
	if err := WriteShapefile(shapefilePath, features, log); err != nil {
		return err
	}

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		filePath := strings.TrimSuffix(shapefilePath, ".shp") + ext

		fileContent, err := os.ReadFile(filePath)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read shapefile component %s: %w", ext, err)
		}

		zipFile, err := zipWriter.Create(baseName + ext)
		if err != nil {
			return fmt.Errorf("failed to create %s file in zip: %w", ext, err)
		}
		if _, err := zipFile.Write(fileContent); err != nil {
			return fmt.Errorf("failed to write %s data to zip: %w", ext, err)
		}
	}

	return nil
}

// WriteShapefile writes features to the shapefile at path (.shp, .shx and
// .dbf side by side).
func WriteShapefile(path string, features []*geo.Feature, log zerolog.Logger) error {
	shapeType, ok := shapeTypeOf(features)
	if !ok {
		return ErrNoShapes
	}

	shape, err := shp.Create(path, shapeType)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	defer shape.Close()

	fields, keys := fieldsFromProperties(features)
	if err := shape.SetFields(fields); err != nil {
		return fmt.Errorf("failed to set shapefile fields: %w", err)
	}

	written := 0
	for i, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		s, err := toShape(f.Geometry, shapeType)
		if err != nil {
			log.Warn().Err(err).Int("featureIndex", i).Msg("Leaving feature out of shapefile")
			continue
		}

		row := int(shape.Write(s))
		writeAttributes(shape, row, f.Properties, fields, keys, i)
		written++
	}

	if written == 0 {
		return ErrNoShapes
	}
	log.Debug().Int("shapes", written).Int("features", len(features)).Str("path", path).Msg("Shapefile written")
	return nil
}

func shapeTypeOf(features []*geo.Feature) (shp.ShapeType, bool) {
	for _, f := range features {
		if f == nil || f.Geometry == nil || f.Geometry.IsEmpty() {
			continue
		}
		switch f.Geometry.Type {
		case geo.TypePoint:
			return shp.POINT, true
		case geo.TypeMultiPoint:
			return shp.MULTIPOINT, true
		case geo.TypeLineString, geo.TypeMultiLineString:
			return shp.POLYLINE, true
		case geo.TypePolygon, geo.TypeMultiPolygon:
			return shp.POLYGON, true
		}
	}
	return shp.NULL, false
}

// toShape walks the flat go-geom coordinates of g, splitting them into
// shapefile parts at every ring or line end.
func toShape(g *geo.Geometry, shapeType shp.ShapeType) (shp.Shape, error) {
	t, err := g.ToGeom()
	if err != nil {
		return nil, err
	}

	points := flatPoints(t.FlatCoords(), t.Stride())
	if len(points) == 0 {
		return nil, fmt.Errorf("%s has no coordinates", g.Type)
	}

	switch {
	case shapeType == shp.POINT && g.Type == geo.TypePoint:
		return &points[0], nil
	case shapeType == shp.MULTIPOINT && g.Type == geo.TypeMultiPoint:
		return &shp.MultiPoint{
			Box:       shp.BBoxFromPoints(points),
			NumPoints: int32(len(points)),
			Points:    points,
		}, nil
	case shapeType == shp.POLYLINE && g.Type.IsLineal(),
		shapeType == shp.POLYGON && g.Type.IsPolygonal():
		parts := splitParts(points, partEnds(t))
		line := shp.NewPolyLine(parts)
		if shapeType == shp.POLYGON {
			return (*shp.Polygon)(line), nil
		}
		return line, nil
	}

	return nil, fmt.Errorf("%s does not fit a %s shapefile", g.Type, shapeName(shapeType))
}

func flatPoints(flat []float64, stride int) []shp.Point {
	points := make([]shp.Point, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		points = append(points, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	return points
}

// partEnds returns the end offset, in coordinates, of every ring or line.
func partEnds(t geom.T) []int {
	stride := t.Stride()
	var ends []int
	switch {
	case len(t.Endss()) > 0:
		for _, e := range t.Endss() {
			ends = append(ends, e...)
		}
	case len(t.Ends()) > 0:
		ends = t.Ends()
	default:
		ends = []int{len(t.FlatCoords())}
	}

	out := make([]int, len(ends))
	for i, e := range ends {
		out[i] = e / stride
	}
	return out
}

func splitParts(points []shp.Point, ends []int) [][]shp.Point {
	parts := make([][]shp.Point, 0, len(ends))
	start := 0
	for _, end := range ends {
		if end > start {
			parts = append(parts, points[start:end])
		}
		start = end
	}
	return parts
}

func shapeName(t shp.ShapeType) string {
	switch t {
	case shp.POINT:
		return "point"
	case shp.MULTIPOINT:
		return "multipoint"
	case shp.POLYLINE:
		return "polyline"
	case shp.POLYGON:
		return "polygon"
	}
	return "null"
}

// fieldsFromProperties builds one DBF field per property key seen on any
// feature, in key order. The type follows the first non-nil value.
func fieldsFromProperties(features []*geo.Feature) ([]shp.Field, []string) {
	samples := make(map[string]any)
	for _, f := range features {
		if f == nil {
			continue
		}
		for key, value := range f.Properties {
			if prev, seen := samples[key]; !seen || prev == nil {
				samples[key] = value
			}
		}
	}

	keys := make([]string, 0, len(samples))
	for key := range samples {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]shp.Field, 0, len(keys)+1)
	used := make(map[string]bool)
	kept := make([]string, 0, len(keys))
	for _, key := range keys {
		name := fieldName(key, used)
		if name == "" {
			continue
		}
		used[name] = true
		kept = append(kept, key)

		switch v := samples[key].(type) {
		case string:
			fields = append(fields, shp.StringField(name, uint8(min(max(len(v), 50), 254))))
		case float64:
			fields = append(fields, shp.FloatField(name, 18, 7))
		case int, int32, int64:
			fields = append(fields, shp.NumberField(name, 15))
		case bool:
			fields = append(fields, shp.StringField(name, 5))
		default:
			fields = append(fields, shp.StringField(name, 100))
		}
	}

	if len(fields) == 0 {
		fields = append(fields, shp.NumberField("ID", 10))
	}

	return fields, kept
}

// fieldName truncates key to the DBF limit and makes it unique among used.
func fieldName(key string, used map[string]bool) string {
	name := key
	if len(name) > dbfNameLength {
		name = name[:dbfNameLength]
	}
	for n := 1; used[name]; n++ {
		suffix := strconv.Itoa(n)
		if len(suffix) >= dbfNameLength {
			return ""
		}
		base := name
		if len(base)+len(suffix) > dbfNameLength {
			base = base[:dbfNameLength-len(suffix)]
		}
		name = base + suffix
	}
	return name
}

func writeAttributes(shape *shp.Writer, row int, properties map[string]any, fields []shp.Field, keys []string, featureIndex int) {
	if len(keys) == 0 {
		shape.WriteAttribute(row, 0, featureIndex+1)
		return
	}

	for i, key := range keys {
		value, found := properties[key]
		field := fields[i]

		if !found || value == nil {
			switch field.Fieldtype {
			case 'N', 'F':
				shape.WriteAttribute(row, i, 0)
			default:
				shape.WriteAttribute(row, i, "")
			}
			continue
		}

		switch field.Fieldtype {
		case 'N':
			shape.WriteAttribute(row, i, toInt(value))
		case 'F':
			shape.WriteAttribute(row, i, toFloat(value))
		default:
			shape.WriteAttribute(row, i, fmt.Sprintf("%v", value))
		}
	}
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
