package catalog

import "github.com/perflab/querybench/pkg/bench"

// Defaults returns the built-in Northwind test set. These exercise the
// query shapes most sensitive to the relational-vs-mediated overhead:
// plain selects, joins, aggregations and offset pagination.
func Defaults() []bench.TestDefinition {
	return []bench.TestDefinition{
		{
			Name:        "simple_select",
			Description: "Simple SELECT query with LIMIT",
			SQL: `SELECT customer_id, company_name, city, country
FROM customers
LIMIT 100`,
			GraphQL: `query {
  customers(limit: 100) {
    customer_id
    company_name
    city
    country
  }
}`,
		},
		{
			Name:        "customer_orders",
			Description: "JOIN query with filtering and ordering",
			SQL: `SELECT c.customer_id, c.company_name, o.order_id, o.order_date, o.freight
FROM customers c
JOIN orders o ON c.customer_id = o.customer_id
WHERE c.country = 'USA'
ORDER BY o.order_date DESC
LIMIT 1000`,
			GraphQL: `query {
  customers(where: {country: {_eq: "USA"}}) {
    customer_id
    company_name
    orders(order_by: {order_date: desc}, limit: 1000) {
      order_id
      order_date
      freight
    }
  }
}`,
		},
		{
			Name:        "order_aggregation",
			Description: "Aggregation query with date filtering",
			SQL: `SELECT
  DATE_TRUNC('month', order_date) AS month,
  COUNT(*) AS order_count,
  SUM(freight) AS total_freight,
  AVG(freight) AS avg_freight
FROM orders
WHERE order_date >= '2023-01-01'
GROUP BY DATE_TRUNC('month', order_date)
ORDER BY month`,
			GraphQL: `query {
  orders_aggregate(where: {order_date: {_gte: "2023-01-01"}}) {
    aggregate {
      count
      sum {
        freight
      }
      avg {
        freight
      }
    }
  }
}`,
		},
		{
			Name:        "complex_join",
			Description: "Complex multi-table JOIN query",
			SQL: `SELECT
  c.company_name,
  p.product_name,
  cat.category_name,
  s.company_name AS supplier_name,
  od.quantity,
  od.unit_price,
  od.line_total,
  o.order_date
FROM customers c
JOIN orders o ON c.customer_id = o.customer_id
JOIN order_details od ON o.order_id = od.order_id
JOIN products p ON od.product_id = p.product_id
JOIN categories cat ON p.category_id = cat.category_id
JOIN suppliers s ON p.supplier_id = s.supplier_id
WHERE o.order_date >= '2024-01-01'
ORDER BY o.order_date DESC, od.line_total DESC
LIMIT 500`,
			GraphQL: `query {
  orders(
    where: {order_date: {_gte: "2024-01-01"}},
    order_by: [{order_date: desc}],
    limit: 500
  ) {
    order_date
    customer {
      company_name
    }
    order_details {
      quantity
      unit_price
      line_total
      product {
        product_name
        category {
          category_name
        }
        supplier {
          company_name
        }
      }
    }
  }
}`,
		},
		{
			Name:        "pagination_test",
			Description: "Pagination performance test",
			SQL: `SELECT customer_id, company_name, contact_name, city, country
FROM customers
ORDER BY customer_id
OFFSET 1000 LIMIT 100`,
			GraphQL: `query {
  customers(order_by: {customer_id: asc}, offset: 1000, limit: 100) {
    customer_id
    company_name
    contact_name
    city
    country
  }
}`,
		},
	}
}

// RegisterDefaults registers the built-in test set into c.
func RegisterDefaults(c *Catalog) error {
	for _, def := range Defaults() {
		if err := c.Register(def); err != nil {
			return err
		}
	}

	return nil
}
