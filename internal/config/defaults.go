package config

// Default values for configuration options. These are the "layer 0" of
// the override chain: defaults -> config file -> environment -> CLI flags.
const (
	defaultPort             = 1433
	defaultFolder           = "Facturas"
	defaultFilenameTemplate = "factura_{reference}.json"
	defaultLogLevel         = "info"
)

// defaultQuery is the flat invoice extraction query: one row per invoice
// line, with the header columns repeated. The transform layer groups rows
// back into one document per invoice.
const defaultQuery = `SELECT
    f.id, f.num_factura, f.año_factura, f.fecha_factura, f.observaciones,
    f.num_albaran, f.fecha_albaran,
    p.id_pedido, p.num_pedido, p.año_pedido, p.fecha_pedido, p.id_pedido_cliente,
    c.id_cliente, c.cliente, c.direccion, c.cod_postal, c.ciudad,
    c.provincia, c.pais, c.nif,
    l.id_articulo, l.descripcion, l.cantidad, l.precio, l.descuento,
    l.total, l.iva
FROM facturas f
JOIN lineas_factura l ON l.id_factura = f.id
LEFT JOIN pedidos p ON p.id_pedido = f.id_pedido
LEFT JOIN clientes c ON c.id_cliente = f.id_cliente
ORDER BY f.id, l.id_linea`

// DefaultConfig returns a Config populated with all default values. Used
// as the starting point for TOML decoding (so unset fields keep their
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Server: "localhost",
			Port:   defaultPort,
			Query:  defaultQuery,
		},
		Drive: DriveConfig{
			Folder:           defaultFolder,
			TokenPath:        DefaultTokenPath(),
			FilenameTemplate: defaultFilenameTemplate,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
	}
}
