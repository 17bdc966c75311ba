// seed_locations genera scripts SQL para poblar las tablas de ubicaciones de
// Costa Rica (provincias, cantones y distritos) a partir del XML de
// ubicaciones que distribuye Hacienda.
//
// Uso: go run ./cmd/seed_locations [ruta/Ubicaciones.xml]
// Por defecto busca Ubicaciones.xml en el directorio actual.
// Escribe: internal/infrastructure/postgres/migrations/008_seed_locations.sql
package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type ubicaciones struct {
	Distritos []distrito `xml:"distrito"`
}

type distrito struct {
	Provincia       string `xml:"provincia,attr"`
	Canton          string `xml:"canton,attr"`
	Codigo          string `xml:"codigo,attr"`
	Nombre          string `xml:"nombre,attr"`
	NombreProvincia string `xml:"nombreProvincia,attr"`
	NombreCanton    string `xml:"nombreCanton,attr"`
}

func main() {
	xmlPath := "Ubicaciones.xml"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}
	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var u ubicaciones
	dec := xml.NewDecoder(f)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&u); err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}

	provinces := make(map[string]string)            // código provincia -> nombre
	cantons := make(map[string]string)              // provincia+canton -> nombre
	var districts []distrito
	for _, d := range u.Distritos {
		if d.Provincia == "" || d.Canton == "" || d.Codigo == "" || d.Nombre == "" {
			continue
		}
		provinces[d.Provincia] = strings.TrimSpace(d.NombreProvincia)
		cantons[d.Provincia+"-"+d.Canton] = strings.TrimSpace(d.NombreCanton)
		districts = append(districts, d)
	}

	// Orden estable por código
	var provCodes []string
	for c := range provinces {
		provCodes = append(provCodes, c)
	}
	sort.Strings(provCodes)
	var cantonKeys []string
	for c := range cantons {
		cantonKeys = append(cantonKeys, c)
	}
	sort.Strings(cantonKeys)
	sort.Slice(districts, func(i, j int) bool {
		a, b := districts[i], districts[j]
		if a.Provincia != b.Provincia {
			return a.Provincia < b.Provincia
		}
		if a.Canton != b.Canton {
			return a.Canton < b.Canton
		}
		return a.Codigo < b.Codigo
	})

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "008_seed_locations.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Provincias, cantones y distritos de Costa Rica\n")
	out.WriteString("-- Generado desde Ubicaciones.xml (Hacienda)\n\n")

	out.WriteString("-- 1. Provincias\n")
	out.WriteString("INSERT INTO locations_provinces (code, name) VALUES\n")
	for i, c := range provCodes {
		sep := ","
		if i == len(provCodes)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  ('%s', '%s')%s\n", c, escapeSQL(provinces[c]), sep)
	}
	out.WriteString("ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name;\n\n")

	out.WriteString("-- 2. Cantones\n")
	for _, key := range cantonKeys {
		parts := strings.SplitN(key, "-", 2)
		fmt.Fprintf(out, "INSERT INTO locations_cantons (province_id, code, name)\n")
		fmt.Fprintf(out, "SELECT id, '%s', '%s' FROM locations_provinces WHERE code = '%s'\n",
			parts[1], escapeSQL(cantons[key]), parts[0])
		out.WriteString("ON CONFLICT (province_id, code) DO UPDATE SET name = EXCLUDED.name;\n")
	}
	out.WriteString("\n")

	out.WriteString("-- 3. Distritos\n")
	for _, d := range districts {
		fmt.Fprintf(out, "INSERT INTO locations_districts (canton_id, code, name)\n")
		fmt.Fprintf(out, "SELECT c.id, '%s', '%s' FROM locations_cantons c\n", d.Codigo, escapeSQL(strings.TrimSpace(d.Nombre)))
		fmt.Fprintf(out, "JOIN locations_provinces p ON p.id = c.province_id AND p.code = '%s'\n", d.Provincia)
		fmt.Fprintf(out, "WHERE c.code = '%s'\n", d.Canton)
		out.WriteString("ON CONFLICT (canton_id, code) DO UPDATE SET name = EXCLUDED.name;\n")
	}

	fmt.Printf("Generado %s: %d provincias, %d cantones, %d distritos\n",
		outPath, len(provCodes), len(cantonKeys), len(districts))
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
